package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

func init() {
	Register("redis", createRedisStore)
}

func createRedisStore(args interface{}) (Adapter, error) {
	config := &redisConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedis(client, config.Prefix), nil
}

func NewRedis(client redis.UniversalClient, prefix string) Adapter {
	return &redisStore{client: client, prefix: prefixOrDefault(prefix)}
}

func (s *redisStore) Type() string {
	return "redis"
}

func (s *redisStore) Save(ctx context.Context, key string, text string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, text, 0).Err()
}

func (s *redisStore) Load(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	text, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, escapeGlob(s.prefix)+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return compactKeys(keys), nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}

// compactKeys drops duplicates from a sorted slice. SCAN may return a key
// more than once.
func compactKeys(keys []string) []string {
	out := keys[:0]
	for i, key := range keys {
		if i > 0 && key == keys[i-1] {
			continue
		}
		out = append(out, key)
	}
	return out
}
