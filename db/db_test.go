package db

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/MoeeinAali/CE419-WP/db/migrations"
	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
)

// openTestDB connects to TEST_POSTGRES_CONN and migrates it, or skips.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_CONN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_CONN not set")
	}
	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(conn.DB))
	return conn
}

func TestStorage(t *testing.T) {
	conn := openTestDB(t)
	testStore(t, func(t *testing.T) marketplace.Store {
		_, err := conn.Exec(`TRUNCATE comments, bids, advertisements`)
		require.NoError(t, err)
		return NewStorage(conn)
	})
}
