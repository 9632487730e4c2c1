package database

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"arbwatch/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

// run starts a throwaway Postgres when Docker is available. Without it the
// integration tests skip and the unit tests still run.
func run(m *testing.M) int {
	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	// Create and start the PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Printf("postgres container unavailable, skipping integration tests: %s", err)
		return m.Run()
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("could not stop postgres container: %s", err)
		}
	}()

	// Get the container's mapped port and host
	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	// Create the database connection string
	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb"

	// Create a new connection pool. The listening port can open a moment
	// before Postgres accepts queries, so retry the ping briefly.
	pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	defer pool.Close()
	for i := 0; i < 20; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	if err != nil {
		log.Fatalf("database never became ready: %s", err)
	}

	repo := &PostgresRepository{Pool: pool}
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("could not create tables: %s", err)
	}

	// Run the tests
	return m.Run()
}

func requirePool(t *testing.T) *PostgresRepository {
	t.Helper()
	if pool == nil {
		t.Skip("postgres container not available")
	}
	return &PostgresRepository{Pool: pool}
}

func TestPostgresRepository_LogCrossOpportunity(t *testing.T) {
	ctx := context.Background()
	repo := requirePool(t)

	opp := model.CrossOpportunity{
		ID:            "arb_test-cross",
		Instrument:    "BTC/USDT",
		BuyExchange:   "kraken",
		SellExchange:  "binance",
		BuyPrice:      60000.0,
		SellPrice:     60600.0,
		ProfitPercent: 1.0,
		Volume:        5000,
		Timestamp:     time.Now().UnixMilli(),
		Status:        model.StatusDetected,
	}

	err := repo.LogCrossOpportunity(ctx, opp)
	assert.NoError(t, err)

	// Re-journaling the same id is a no-op
	assert.NoError(t, repo.LogCrossOpportunity(ctx, opp))

	// Verify the opportunity was logged
	var logged model.CrossOpportunity
	var status string
	err = pool.QueryRow(ctx, "SELECT instrument, buy_exchange, sell_exchange, buy_price, sell_price, profit_percent, status FROM cross_opportunities WHERE id = $1", opp.ID).Scan(
		&logged.Instrument, &logged.BuyExchange, &logged.SellExchange, &logged.BuyPrice, &logged.SellPrice, &logged.ProfitPercent, &status,
	)
	require.NoError(t, err)
	assert.Equal(t, opp.Instrument, logged.Instrument)
	assert.Equal(t, opp.BuyExchange, logged.BuyExchange)
	assert.Equal(t, opp.SellExchange, logged.SellExchange)
	assert.InDelta(t, opp.SellPrice, logged.SellPrice, 1e-9)
	assert.Equal(t, "detected", status)
}

func TestPostgresRepository_LogTriangleOpportunity(t *testing.T) {
	ctx := context.Background()
	repo := requirePool(t)

	opp := model.TriangleOpportunity{
		ID:            "tri_test-triangle",
		ConfigID:      "btc-eth-usdt-binance",
		Exchange:      "binance",
		Path:          "BTC→ETH→USDT→BTC",
		BuyPrice:      50000,
		ConvertPrice:  0.05,
		SellPrice:     2600,
		ProfitPercent: 0.26,
		Timestamp:     time.Now().UnixMilli(),
		Simulated:     true,
	}
	require.NoError(t, repo.LogTriangleOpportunity(ctx, opp))

	var path string
	var simulated bool
	err := pool.QueryRow(ctx, "SELECT path, simulated FROM triangle_opportunities WHERE id = $1", opp.ID).Scan(&path, &simulated)
	require.NoError(t, err)
	assert.Equal(t, opp.Path, path)
	assert.True(t, simulated)
}

func TestPostgresRepository_LogTestOrder(t *testing.T) {
	ctx := context.Background()
	repo := requirePool(t)

	opp := model.TriangleOpportunity{Path: "BTC→ETH→USDT→BTC", Exchange: "binance", ProfitPercent: 0.4}
	entry := model.NewTestOrderLogEntry("test_entry", opp, time.Now())
	require.NoError(t, repo.LogTestOrder(ctx, entry))

	var text string
	err := pool.QueryRow(ctx, "SELECT text FROM test_orders WHERE id = $1", entry.ID).Scan(&text)
	require.NoError(t, err)
	assert.Contains(t, text, "TEST ORDER EXECUTED")
	assert.Contains(t, text, "SIMULATED (no real funds used)")
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arb?sslmode=disable", DSN(configFor("u", "p", "db", 0, "arb")))
	assert.Equal(t, "postgres://u:p@db:6543/arb?sslmode=disable", DSN(configFor("u", "p", "db", 6543, "arb")))

	t.Run("credentials are escaped", func(t *testing.T) {
		dsn := DSN(configFor("arb user", "p@ss/w:rd", "db", 0, "arb"))
		assert.Equal(t, "postgres://arb%20user:p%40ss%2Fw%3Ard@db:5432/arb?sslmode=disable", dsn)

		parsed, err := pgxpool.ParseConfig(dsn)
		require.NoError(t, err)
		assert.Equal(t, "arb user", parsed.ConnConfig.User)
		assert.Equal(t, "p@ss/w:rd", parsed.ConnConfig.Password)
		assert.Equal(t, "db", parsed.ConnConfig.Host)
		assert.Equal(t, uint16(5432), parsed.ConnConfig.Port)
		assert.Equal(t, "arb", parsed.ConnConfig.Database)
	})
}
