package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type gcsConfig struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	CredentialsFile string `json:"credentials_file"`
}

type gcsStore struct {
	bucket *gcs.BucketHandle
	prefix string
}

func init() {
	Register("gcs", createGCSStore)
}

func createGCSStore(args interface{}) (Adapter, error) {
	config := &gcsConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	opts := []option.ClientOption{option.WithScopes(gcs.ScopeReadWrite)}
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	client, err := gcs.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return NewGCS(client.Bucket(config.Bucket), config.Prefix), nil
}

func NewGCS(bucket *gcs.BucketHandle, prefix string) Adapter {
	return &gcsStore{bucket: bucket, prefix: prefixOrDefault(prefix)}
}

func (s *gcsStore) Type() string {
	return "gcs"
}

func (s *gcsStore) Save(ctx context.Context, key string, text string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	w := s.bucket.Object(s.prefix + key).NewWriter(ctx)
	w.ContentType = sqlnbContentType
	if _, err := io.WriteString(w, text); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *gcsStore) Load(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	r, err := s.bucket.Object(s.prefix + key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := s.bucket.Object(s.prefix + key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (s *gcsStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}
