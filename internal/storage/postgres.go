package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/sqlnb/internal/config"
	"github.com/xxxsen/sqlnb/internal/db"
	"github.com/xxxsen/sqlnb/internal/pkg/dbutil"
)

const (
	notebookFilesTable = "notebook_files"
	listPageSize       = 500
)

type postgresConfig struct {
	config.DatabaseConfig
	Namespace string `json:"namespace"`
}

type postgresStore struct {
	db        *sql.DB
	namespace string
}

func init() {
	Register("postgres", createPostgresStore)
}

func createPostgresStore(args interface{}) (Adapter, error) {
	cfg := &postgresConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" && cfg.Host == "" {
		return nil, fmt.Errorf("postgres dsn or host is required")
	}
	sqlDB, err := db.Open(cfg.DatabaseConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.ApplyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return NewPostgres(sqlDB, cfg.Namespace), nil
}

// NewPostgres keeps files in the notebook_files table. The namespace column
// plays the role the key prefix plays in the other backends.
func NewPostgres(sqlDB *sql.DB, namespace string) Adapter {
	return &postgresStore{db: sqlDB, namespace: prefixOrDefault(namespace)}
}

func (s *postgresStore) Type() string {
	return "postgres"
}

func (s *postgresStore) Save(ctx context.Context, key string, text string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	sqlStr, args := dbutil.BuildUpsert(notebookFilesTable, map[string]interface{}{
		"namespace": s.namespace,
		"file_key":  key,
		"content":   text,
		"ctime":     now,
		"mtime":     now,
	}, []string{"namespace", "file_key"}, "ctime")
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err := s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *postgresStore) Load(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	where := map[string]interface{}{
		"namespace": s.namespace,
		"file_key":  key,
	}
	sqlStr, args, err := builder.BuildSelect(notebookFilesTable, where, []string{"content"})
	if err != nil {
		return "", false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var content string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return content, true, nil
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	where := map[string]interface{}{
		"namespace": s.namespace,
		"file_key":  key,
	}
	sqlStr, args, err := builder.BuildDelete(notebookFilesTable, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// List pages through the namespace so a large table is never read in one
// result set.
func (s *postgresStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	for offset := uint(0); ; offset += listPageSize {
		page, err := s.listPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page...)
		if len(page) < listPageSize {
			return keys, nil
		}
	}
}

func (s *postgresStore) listPage(ctx context.Context, offset uint) ([]string, error) {
	where := map[string]interface{}{
		"namespace": s.namespace,
		"_orderby":  "file_key asc",
		"_limit":    []uint{offset, listPageSize},
	}
	sqlStr, args, err := builder.BuildSelect(notebookFilesTable, where, []string{"file_key"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0, listPageSize)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
