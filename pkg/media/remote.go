package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

// Remote resolves audio from the same backend the chats are served from.
// Live streams are served below /streams/{streamId}, finalized content below
// /blobs/{contentId}. Both accept an offset in milliseconds.
type Remote struct {
	Client *resty.Client
}

func NewRemote(client *resty.Client) *Remote {
	return &Remote{Client: client}
}

func (this *Remote) Resolve(_ context.Context, entry chat.Entry, skipTo time.Duration) (Source, error) {
	switch {
	case entry.IsStreaming():
		return &remoteSource{this.Client, "stream", "/streams/" + url.PathEscape(entry.StreamId), skipTo}, nil
	case entry.ContentId != "":
		return &remoteSource{this.Client, "blob", "/blobs/" + url.PathEscape(entry.ContentId), skipTo}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrNoAudio, entry)
	}
}

type remoteSource struct {
	client *resty.Client
	kind   string
	path   string
	offset time.Duration
}

func (this *remoteSource) Kind() string {
	return this.kind
}

func (this *remoteSource) String() string {
	return fmt.Sprintf("%s@%v", this.path, this.offset)
}

func (this *remoteSource) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := this.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParam("offset", strconv.FormatInt(this.offset.Milliseconds(), 10)).
		Get(this.path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %v: %w", this, err)
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		_ = body.Close()
		return nil, fmt.Errorf("cannot open %v: unexpected status %d", this, resp.StatusCode())
	}
	return body, nil
}
