package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Runs only against a disposable database: TEST_DATABASE_URL=postgres://...
func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))

	runContract(t, func(t *testing.T) HistoryStore {
		_, err := pool.Exec(ctx, "TRUNCATE assessment_reports, login_sessions, daily_sales")
		require.NoError(t, err)
		return NewPostgresStore(pool, DefaultLimits())
	})
}
