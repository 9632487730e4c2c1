package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"arbwatch/internal/config"
	"arbwatch/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS cross_opportunities (
	id VARCHAR(64) PRIMARY KEY,
	instrument VARCHAR(32) NOT NULL,
	buy_exchange VARCHAR(50) NOT NULL,
	sell_exchange VARCHAR(50) NOT NULL,
	buy_price NUMERIC(28, 12) NOT NULL,
	sell_price NUMERIC(28, 12) NOT NULL,
	profit_percent NUMERIC(12, 6) NOT NULL,
	volume NUMERIC(28, 8) NOT NULL,
	status VARCHAR(16) NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS triangle_opportunities (
	id VARCHAR(64) PRIMARY KEY,
	config_id VARCHAR(128) NOT NULL,
	exchange VARCHAR(50) NOT NULL,
	path VARCHAR(64) NOT NULL,
	buy_price NUMERIC(28, 12) NOT NULL,
	convert_price NUMERIC(28, 12) NOT NULL,
	sell_price NUMERIC(28, 12) NOT NULL,
	profit_percent NUMERIC(12, 6) NOT NULL,
	simulated BOOLEAN NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS test_orders (
	id VARCHAR(64) PRIMARY KEY,
	path VARCHAR(64) NOT NULL,
	exchange VARCHAR(50) NOT NULL,
	profit_percent NUMERIC(12, 6) NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// DSN builds a connection string from the database settings.
func DSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// NewPostgresRepository connects, pings and creates the schema.
func NewPostgresRepository(ctx context.Context, cfg config.DatabaseConfig) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	repo := &PostgresRepository{Pool: pool}
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates the journal tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

func (r *PostgresRepository) LogCrossOpportunity(ctx context.Context, opp model.CrossOpportunity) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO cross_opportunities (id, instrument, buy_exchange, sell_exchange, buy_price, sell_price, profit_percent, volume, status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, to_timestamp($10::double precision / 1000))
		ON CONFLICT (id) DO NOTHING`,
		opp.ID, opp.Instrument, opp.BuyExchange, opp.SellExchange,
		opp.BuyPrice, opp.SellPrice, opp.ProfitPercent, opp.Volume, string(opp.Status), opp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("database: insert cross_opportunity: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LogTriangleOpportunity(ctx context.Context, opp model.TriangleOpportunity) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO triangle_opportunities (id, config_id, exchange, path, buy_price, convert_price, sell_price, profit_percent, simulated, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, to_timestamp($10::double precision / 1000))
		ON CONFLICT (id) DO NOTHING`,
		opp.ID, opp.ConfigID, opp.Exchange, opp.Path,
		opp.BuyPrice, opp.ConvertPrice, opp.SellPrice, opp.ProfitPercent, opp.Simulated, opp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("database: insert triangle_opportunity: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LogTestOrder(ctx context.Context, entry model.TestOrderLogEntry) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO test_orders (id, path, exchange, profit_percent, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Path, entry.Exchange, entry.ProfitPercent, entry.Text, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("database: insert test_order: %w", err)
	}
	return nil
}
