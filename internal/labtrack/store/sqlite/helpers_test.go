package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/labtrack/internal/db"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store/memory"
)

// openTestDB returns a private in-memory database with the production
// schema, closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := "store_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenMemory(context.Background(), name)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test
// finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	return w
}

func seedDemo(t *testing.T, conn *sql.DB) {
	t.Helper()
	require.NoError(t, db.SeedDev(context.Background(), conn, memory.DemoReference()))
}
