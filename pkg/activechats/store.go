package activechats

import (
	"context"
	"fmt"
	"strings"
)

// Store persists active chats between sessions.
type Store interface {
	Load(ctx context.Context) (ActiveChats, error)
	Save(ctx context.Context, v ActiveChats) error
}

const documentVersion = 1

type document struct {
	Version     int         `json:"version" yaml:"version"`
	ActiveChats ActiveChats `json:"activeChats" yaml:"activeChats"`
}

func newDocument(v ActiveChats) document {
	if v == nil {
		v = ActiveChats{}
	}
	return document{documentVersion, v}
}

func (this document) activeChats() (ActiveChats, error) {
	if this.Version > documentVersion {
		return nil, fmt.Errorf("unsupported version of active chats document: %d", this.Version)
	}
	var result ActiveChats
	for _, v := range this.ActiveChats {
		if v.ChatId.IsNone() || result.Contains(v.ChatId) {
			continue
		}
		result = append(result, v)
	}
	return result, nil
}

type StoreType uint8

const (
	StoreTypeNone  = StoreType(0)
	StoreTypeFile  = StoreType(1)
	StoreTypeRedis = StoreType(2)

	StoreTypeDefault = StoreTypeFile
)

var (
	AllStoreTypes = StoreTypes{
		StoreTypeNone,
		StoreTypeFile,
		StoreTypeRedis,
	}
)

func (this *StoreType) Set(plain string) error {
	switch strings.TrimSpace(strings.ToLower(plain)) {
	case "none", "":
		*this = StoreTypeNone
		return nil
	case "file":
		*this = StoreTypeFile
		return nil
	case "redis":
		*this = StoreTypeRedis
		return nil
	default:
		return fmt.Errorf("illegal-store-type: %s", plain)
	}
}

func (this StoreType) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-store-type-%d", this)
	}
	return string(v)
}

func (this StoreType) MarshalText() (text []byte, err error) {
	switch this {
	case StoreTypeNone:
		return []byte("none"), nil
	case StoreTypeFile:
		return []byte("file"), nil
	case StoreTypeRedis:
		return []byte("redis"), nil
	default:
		return nil, fmt.Errorf("illegal store type: %d", this)
	}
}

func (this *StoreType) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}

type StoreTypes []StoreType

func (this StoreTypes) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this StoreTypes) String() string {
	return strings.Join(this.Strings(), ",")
}
