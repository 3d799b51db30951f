//go:build integration

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	require.NoError(t, database.Migrate(db, "../../migrations", "up"))
	return db
}

func seedCatalog(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO categories (id, name, sort_order) VALUES
			(1, 'Rolls', 2),
			(2, 'Entradas', 1);
		INSERT INTO products (id, category_id, name, description, price, discount_price, image_url, is_special, is_active) VALUES
			(1, 1, 'California Roll', 'Kanikama, palta', 5000, NULL, NULL, FALSE, TRUE),
			(2, 1, 'Acevichado', NULL, 7000, 6500, 'https://img/2.jpg', TRUE, TRUE),
			(3, 2, 'Gyozas', 'Cerdo', 3500, 0, NULL, FALSE, TRUE),
			(4, 2, 'Retirado', NULL, 1000, NULL, NULL, FALSE, FALSE);
	`)
	require.NoError(t, err)
}
