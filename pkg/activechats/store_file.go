package activechats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps active chats as YAML document in a local file.
type FileStore struct {
	Filename string

	mutex sync.Mutex
}

func (this *FileStore) Load(context.Context) (ActiveChats, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	f, err := os.Open(this.Filename)
	if os.IsNotExist(err) {
		return ActiveChats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open active chats file %q: %w", this.Filename, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var doc document
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("cannot load active chats file %q: %w", this.Filename, err)
	}
	return doc.activeChats()
}

func (this *FileStore) Save(_ context.Context, v ActiveChats) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	_ = os.MkdirAll(filepath.Dir(this.Filename), 0700)

	f, err := os.OpenFile(this.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot open active chats file %q: %w", this.Filename, err)
	}
	defer func() {
		_ = f.Close()
	}()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(v)); err != nil {
		return fmt.Errorf("cannot write active chats file %q: %w", this.Filename, err)
	}
	return enc.Close()
}
