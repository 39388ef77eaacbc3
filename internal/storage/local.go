package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const localTempPattern = ".sqlnb-tmp-*"

type localConfig struct {
	Dir    string `json:"dir"`
	Prefix string `json:"prefix"`
}

type localStore struct {
	dir    string
	prefix string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Adapter, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	return NewLocal(config.Dir, config.Prefix), nil
}

// NewLocal stores each file as dir/<prefix><key>.
func NewLocal(dir, prefix string) Adapter {
	return &localStore{dir: dir, prefix: prefixOrDefault(prefix)}
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) Save(ctx context.Context, key string, text string) error {
	_ = ctx
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, localTempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *localStore) Load(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *localStore) List(ctx context.Context) ([]string, error) {
	_ = ctx
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, s.prefix) {
			continue
		}
		keys = append(keys, strings.TrimPrefix(name, s.prefix))
	}
	return keys, nil
}

func (s *localStore) path(key string) string {
	return filepath.Join(s.dir, s.prefix+key)
}
