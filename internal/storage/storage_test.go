package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/sqlnb/internal/config"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

func runAdapterContract(t *testing.T, adapter Adapter) {
	ctx := context.Background()

	keys, err := adapter.List(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)

	_, ok, err := adapter.Load(ctx, "missing.sqlnb")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, adapter.Save(ctx, "b.sqlnb", "second"))
	require.NoError(t, adapter.Save(ctx, "a.sqlnb", "first"))

	text, ok, err := adapter.Load(ctx, "a.sqlnb")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", text)

	require.NoError(t, adapter.Save(ctx, "a.sqlnb", "first v2"))
	text, ok, err = adapter.Load(ctx, "a.sqlnb")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first v2", text)

	keys, err = adapter.List(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"a.sqlnb", "b.sqlnb"}, keys)

	require.NoError(t, adapter.Delete(ctx, "a.sqlnb"))
	require.NoError(t, adapter.Delete(ctx, "a.sqlnb"))
	_, ok, err = adapter.Load(ctx, "a.sqlnb")
	require.NoError(t, err)
	require.False(t, ok)

	keys, err = adapter.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b.sqlnb"}, keys)

	err = adapter.Save(ctx, "../escape.sqlnb", "x")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	err = adapter.Save(ctx, "", "x")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestMemoryAdapterContract(t *testing.T) {
	runAdapterContract(t, NewMemory())
}

func TestLocalAdapterContract(t *testing.T) {
	runAdapterContract(t, NewLocal(t.TempDir(), ""))
}

func TestCachedAdapterContract(t *testing.T) {
	runAdapterContract(t, WithCache(NewMemory(), 8, time.Minute))
}

func TestS3AdapterContract(t *testing.T) {
	runAdapterContract(t, NewS3(newFakeS3(), "notebooks", ""))
}

func TestLocalAdapterNamespacing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, DefaultPrefix+"dir"), 0o755))

	adapter := NewLocal(dir, "")
	require.NoError(t, adapter.Save(context.Background(), "n1.sqlnb", "body"))

	data, err := os.ReadFile(filepath.Join(dir, DefaultPrefix+"n1.sqlnb"))
	require.NoError(t, err)
	require.Equal(t, "body", string(data))

	keys, err := adapter.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"n1.sqlnb"}, keys)
}

func TestLocalAdapterListMissingDir(t *testing.T) {
	adapter := NewLocal(filepath.Join(t.TempDir(), "not-created"), "")
	keys, err := adapter.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	adapter, err := New(config.StorageConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": dir, "prefix": "nb_"},
	})
	require.NoError(t, err)
	require.Equal(t, "local", adapter.Type())
	require.NoError(t, adapter.Save(context.Background(), "x.sqlnb", "x"))
	_, err = os.Stat(filepath.Join(dir, "nb_x.sqlnb"))
	require.NoError(t, err)

	adapter, err = New(config.StorageConfig{Type: "memory", Cache: config.CacheConfig{Size: 4, TTLSeconds: 60}})
	require.NoError(t, err)
	_, cached := adapter.(*cachedStore)
	require.True(t, cached)

	_, err = New(config.StorageConfig{Type: "ftp"})
	require.Error(t, err)
	_, err = New(config.StorageConfig{Type: "local"})
	require.Error(t, err)
	_, err = New(config.StorageConfig{Type: "local", Data: map[string]interface{}{}})
	require.Error(t, err)
}

type countingAdapter struct {
	Adapter
	loads int
}

func (c *countingAdapter) Load(ctx context.Context, key string) (string, bool, error) {
	c.loads++
	return c.Adapter.Load(ctx, key)
}

func TestCacheServesRepeatedLoads(t *testing.T) {
	ctx := context.Background()
	inner := &countingAdapter{Adapter: NewMemory()}
	adapter := WithCache(inner, 4, time.Minute)

	require.NoError(t, inner.Adapter.Save(ctx, "k.sqlnb", "v1"))
	for i := 0; i < 3; i++ {
		text, ok, err := adapter.Load(ctx, "k.sqlnb")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v1", text)
	}
	require.Equal(t, 1, inner.loads)

	require.NoError(t, adapter.Save(ctx, "k.sqlnb", "v2"))
	text, _, err := adapter.Load(ctx, "k.sqlnb")
	require.NoError(t, err)
	require.Equal(t, "v2", text)
	require.Equal(t, 1, inner.loads)

	require.NoError(t, adapter.Delete(ctx, "k.sqlnb"))
	_, ok, err := adapter.Load(ctx, "k.sqlnb")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, inner.loads)
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, "sqlnb_", escapeGlob("sqlnb_"))
	require.Equal(t, `a\*b\?\[c\]`, escapeGlob("a*b?[c]"))
}

func TestBuildS3Endpoint(t *testing.T) {
	require.Equal(t, "http://minio:9000", buildS3Endpoint("minio:9000", false))
	require.Equal(t, "https://s3.example.com", buildS3Endpoint("s3.example.com/", true))
	require.Equal(t, "http://already", buildS3Endpoint("http://already", true))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]string)}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(params.Key)] = string(data)
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(data)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(params.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(params.Prefix)
	names := make([]string, 0, len(f.objects))
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, name := range names {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(name)})
	}
	return out, nil
}
