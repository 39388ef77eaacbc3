package storage

import (
	"context"
	"testing"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/stretchr/testify/require"
)

func newTestGCS(t *testing.T, objects ...fakestorage.Object) *fakestorage.Server {
	t.Helper()
	server := fakestorage.NewServer(objects)
	t.Cleanup(server.Stop)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: "notebooks"})
	return server
}

func TestGCSAdapterContract(t *testing.T) {
	server := newTestGCS(t)
	runAdapterContract(t, NewGCS(server.Client().Bucket("notebooks"), ""))
}

func TestGCSAdapterSkipsNestedAndForeignObjects(t *testing.T) {
	server := newTestGCS(t,
		fakestorage.Object{ObjectAttrs: fakestorage.ObjectAttrs{BucketName: "notebooks", Name: "other.txt"}, Content: []byte("x")},
		fakestorage.Object{ObjectAttrs: fakestorage.ObjectAttrs{BucketName: "notebooks", Name: DefaultPrefix + "dir/nested.sqlnb"}, Content: []byte("x")},
	)
	adapter := NewGCS(server.Client().Bucket("notebooks"), "")
	require.NoError(t, adapter.Save(context.Background(), "top.sqlnb", "body"))

	keys, err := adapter.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"top.sqlnb"}, keys)
}
