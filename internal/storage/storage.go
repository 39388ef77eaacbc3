// Package storage persists .sqlnb text under string keys. Every backend
// namespaces its keys so the application only ever sees its own files.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/sqlnb/internal/config"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

// DefaultPrefix namespaces keys in shared backends.
const DefaultPrefix = "sqlnb_"

// Adapter is the key to text contract all backends implement. Load reports
// absence through the bool rather than an error. Delete of a missing key
// succeeds. List returns bare keys with any backend prefix removed.
type Adapter interface {
	Type() string
	Save(ctx context.Context, key string, text string) error
	Load(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

type Factory func(args interface{}) (Adapter, error)

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

func New(cfg config.StorageConfig) (Adapter, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("storage.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	adapter, err := factory(cfg.Data)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Size > 0 {
		adapter = WithCache(adapter, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}
	return adapter, nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("storage config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode storage config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode storage config: %w", err)
	}
	return nil
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("file key is required: %w", appErr.ErrInvalid)
	}
	if strings.Contains(key, "/") || strings.Contains(key, "\\") || key == "." || key == ".." {
		return fmt.Errorf("invalid file key %q: %w", key, appErr.ErrInvalid)
	}
	return nil
}

func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}
