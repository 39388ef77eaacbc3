package dbutil

import (
	"testing"

	"github.com/didi/gendry/builder"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	where := map[string]interface{}{
		"namespace": "sqlnb_",
		"_orderby":  "file_key asc",
		"_limit":    []uint{500, 100},
	}
	query, args, err := builder.BuildSelect("notebook_files", where, []string{"file_key"})
	require.NoError(t, err)
	query, args = Finalize(query, args)
	require.Contains(t, query, "LIMIT $2 OFFSET $3")
	require.Contains(t, query, "$1")
	require.Equal(t, []interface{}{"sqlnb_", 100, 500}, normalizeInts(args))
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("SELECT a FROM t WHERE a = ? AND b = ?", []interface{}{1, 2})
	require.Equal(t, "SELECT a FROM t WHERE a = $1 AND b = $2", query)
	require.Equal(t, []interface{}{1, 2}, args)
}

func TestBuildUpsert(t *testing.T) {
	query, args := BuildUpsert("notebook_files", map[string]interface{}{
		"namespace": "ns",
		"file_key":  "a.sqlnb",
		"content":   "text",
		"ctime":     int64(1),
		"mtime":     int64(2),
	}, []string{"namespace", "file_key"}, "ctime")
	require.Equal(t, "INSERT INTO notebook_files (content, ctime, file_key, mtime, namespace) VALUES (?, ?, ?, ?, ?) "+
		"ON CONFLICT (namespace, file_key) DO UPDATE SET content = EXCLUDED.content, mtime = EXCLUDED.mtime", query)
	require.Equal(t, []interface{}{"text", int64(1), "a.sqlnb", int64(2), "ns"}, args)

	query, _ = BuildUpsert("t", map[string]interface{}{"id": 1}, []string{"id"})
	require.Equal(t, "INSERT INTO t (id) VALUES (?) ON CONFLICT (id) DO NOTHING", query)
}

func normalizeInts(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case uint:
			out[i] = int(v)
		case int64:
			out[i] = int(v)
		default:
			out[i] = a
		}
	}
	return out
}
