// Package attachment keeps the binary payload of image and file cells. The
// notebook document only stores the resulting url.
package attachment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xxxsen/sqlnb/internal/config"
)

type Store interface {
	Type() string
	Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error
	Open(ctx context.Context, key string) (ReadSeekCloser, error)
	// URL is the address a cell should reference. baseURL is the public
	// address of this server and is used when the store has no own url.
	URL(key, baseURL string) string
}

type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds the configured store. An empty type disables attachments and
// returns a nil Store.
func New(cfg config.AttachmentConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, nil
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported attachment store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("attachment store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode attachment store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode attachment store config: %w", err)
	}
	return nil
}

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

// NewKey returns a random key that keeps the lower cased extension of
// filename. owner, when set, prefixes the key.
func NewKey(owner, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	base := hex.EncodeToString(buf)
	if owner != "" {
		base = owner + "_" + base
	}
	return base + ext
}
