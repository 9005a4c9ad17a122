package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	log "github.com/echocat/slf4g"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

// Repository accesses chats of a remote chat service using its REST API.
// New entries are observed using the websocket watch endpoint.
type Repository struct {
	conf   Configuration
	client *resty.Client
	dialer *websocket.Dialer
}

func New(conf Configuration) *Repository {
	client := resty.New().
		SetBaseURL(strings.TrimRight(conf.Url, "/")).
		SetTimeout(conf.Timeout).
		SetHeader("Accept", "application/json")
	if conf.Token != "" {
		client.SetAuthToken(conf.Token)
	}
	return &Repository{
		conf:   conf,
		client: client,
		dialer: websocket.DefaultDialer,
	}
}

func (this *Repository) request(ctx context.Context, chatId chat.Id) *resty.Request {
	return this.client.R().
		SetContext(ctx).
		SetPathParam("chatId", chatId.String())
}

func (this *Repository) checkResponse(rsp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("cannot retrieve %s: %w", what, err)
	}
	switch rsp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", chat.ErrAccessDenied, what)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", chat.ErrNotFound, what)
	default:
		return fmt.Errorf("cannot retrieve %s: unexpected status code: %d - %s", what, rsp.StatusCode(), rsp.Status())
	}
}

func (this *Repository) GetChat(ctx context.Context, chatId chat.Id) (result chat.Chat, _ error) {
	rsp, err := this.request(ctx, chatId).
		SetResult(&result).
		Get("/chats/{chatId}")
	if err := this.checkResponse(rsp, err, "chat "+chatId.String()); err != nil {
		return chat.Chat{}, err
	}
	return result, nil
}

// GetRules returns empty rules if the chat does not exist or is not
// accessible by the current user.
func (this *Repository) GetRules(ctx context.Context, chatId chat.Id) (result chat.Rules, _ error) {
	rsp, err := this.request(ctx, chatId).
		SetResult(&result).
		Get("/chats/{chatId}/rules")
	if err != nil {
		return chat.Rules{}, fmt.Errorf("cannot retrieve rules of chat %v: %w", chatId, err)
	}
	switch rsp.StatusCode() {
	case http.StatusOK:
		return result, nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return chat.Rules{}, nil
	default:
		return chat.Rules{}, fmt.Errorf("cannot retrieve rules of chat %v: unexpected status code: %d - %s", chatId, rsp.StatusCode(), rsp.Status())
	}
}

func (this *Repository) GetIdRange(ctx context.Context, chatId chat.Id, kind chat.EntryKind) (result chat.IdRange, _ error) {
	rsp, err := this.request(ctx, chatId).
		SetPathParam("kind", kind.String()).
		SetResult(&result).
		Get("/chats/{chatId}/entries/{kind}/range")
	if err := this.checkResponse(rsp, err, fmt.Sprintf("%v entry range of chat %v", kind, chatId)); err != nil {
		return chat.IdRange{}, err
	}
	return result, nil
}

func (this *Repository) GetTile(ctx context.Context, chatId chat.Id, kind chat.EntryKind, r chat.IdRange) (result []chat.Entry, _ error) {
	rsp, err := this.request(ctx, chatId).
		SetPathParam("kind", kind.String()).
		SetQueryParam("start", strconv.FormatInt(r.Start, 10)).
		SetQueryParam("end", strconv.FormatInt(r.End, 10)).
		SetResult(&result).
		Get("/chats/{chatId}/entries/{kind}")
	if err := this.checkResponse(rsp, err, fmt.Sprintf("%v entries %v of chat %v", kind, r, chatId)); err != nil {
		return nil, err
	}
	return result, nil
}

func (this *Repository) WatchIdRange(ctx context.Context, chatId chat.Id, kind chat.EntryKind, known chat.IdRange) (chat.IdRange, error) {
	u, err := this.watchUrl(chatId, kind)
	if err != nil {
		return chat.IdRange{}, err
	}

	header := http.Header{}
	if this.conf.Token != "" {
		header.Set("Authorization", "Bearer "+this.conf.Token)
	}
	conn, rsp, err := this.dialer.DialContext(ctx, u, header)
	if err != nil {
		if rsp != nil && (rsp.StatusCode == http.StatusForbidden || rsp.StatusCode == http.StatusUnauthorized) {
			return chat.IdRange{}, fmt.Errorf("%w: watch %v entries of chat %v", chat.ErrAccessDenied, kind, chatId)
		}
		return chat.IdRange{}, fmt.Errorf("cannot watch %v entries of chat %v: %w", kind, chatId, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var current chat.IdRange
		if err := conn.ReadJSON(&current); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return chat.IdRange{}, ctxErr
			}
			return chat.IdRange{}, fmt.Errorf("cannot watch %v entries of chat %v: %w", kind, chatId, err)
		}
		if current != known {
			return current, nil
		}
		log.With("chatId", chatId).
			With("range", current).
			Trace("Watched range unchanged.")
	}
}

func (this *Repository) watchUrl(chatId chat.Id, kind chat.EntryKind) (string, error) {
	u, err := url.Parse(strings.TrimRight(this.conf.Url, "/"))
	if err != nil {
		return "", fmt.Errorf("illegal chat service url %q: %w", this.conf.Url, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/chats/" + url.PathEscape(chatId.String()) + "/entries/" + kind.String() + "/watch"
	return u.String(), nil
}
