package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/sqlnb/internal/config"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://u@h/db", DSN(config.DatabaseConfig{DSN: "postgres://u@h/db", Host: "ignored"}))
	require.Equal(t, "host=db port=5432 user=nb password=pw dbname=notes sslmode=disable",
		DSN(config.DatabaseConfig{Host: "db", User: "nb", Password: "pw", DBName: "notes"}))
	require.Equal(t, "host=db port=6543 user= password= dbname= sslmode=require",
		DSN(config.DatabaseConfig{Host: "db", Port: 6543, SSLMode: "require"}))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.Equal(t, "001_notebook_files.sql", files[0])
}

func TestSplitStatements(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (id INT);\n\n-- trailing comment\n;CREATE INDEX i ON a (id);\n")
	require.Equal(t, []string{"-- header\nCREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}, stmts)
}
