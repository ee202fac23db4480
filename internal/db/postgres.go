package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wuwenbin0122/finbot/internal/utils"
)

// ErrNotFound is returned when a record does not exist or belongs to another
// user.
var ErrNotFound = errors.New("db: record not found")

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	dsn := cfg.BuildDSN()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

// Tables lists the tables EnsureSchema manages.
var Tables = []string{"users", "profiles", "chats", "chat_messages", "transactions", "holdings"}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	statements := []string{
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS users (",
			"    id TEXT PRIMARY KEY,",
			"    username TEXT NOT NULL,",
			"    email TEXT NOT NULL DEFAULT '',",
			"    password_hash TEXT NOT NULL,",
			"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),",
			"    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
			")",
		}, "\n"),
		"CREATE UNIQUE INDEX IF NOT EXISTS " + usernameIndex + " ON users (LOWER(username))",
		"CREATE UNIQUE INDEX IF NOT EXISTS " + emailIndex + " ON users (LOWER(email)) WHERE email <> ''",
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS profiles (",
			"    user_id TEXT PRIMARY KEY,",
			"    persona TEXT NOT NULL DEFAULT 'Student',",
			"    age TEXT NOT NULL DEFAULT '',",
			"    income TEXT NOT NULL DEFAULT '',",
			"    goals TEXT NOT NULL DEFAULT '',",
			"    display_name TEXT NOT NULL DEFAULT '',",
			"    avatar_data_url TEXT NOT NULL DEFAULT '',",
			"    country TEXT NOT NULL DEFAULT '',",
			"    currency TEXT NOT NULL DEFAULT '',",
			"    locale TEXT NOT NULL DEFAULT '',",
			"    risk_tolerance INT NOT NULL DEFAULT 3,",
			"    time_horizon TEXT NOT NULL DEFAULT '',",
			"    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
			")",
		}, "\n"),
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS chats (",
			"    id TEXT PRIMARY KEY,",
			"    user_id TEXT NOT NULL,",
			"    title TEXT NOT NULL DEFAULT '',",
			"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),",
			"    last_message_at TIMESTAMPTZ",
			")",
		}, "\n"),
		"CREATE INDEX IF NOT EXISTS chats_user_activity_idx ON chats (user_id, last_message_at DESC NULLS LAST, created_at DESC)",
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS chat_messages (",
			"    seq BIGSERIAL PRIMARY KEY,",
			"    chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,",
			"    message_id TEXT NOT NULL,",
			"    sender TEXT NOT NULL,",
			"    text TEXT NOT NULL,",
			"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
			")",
		}, "\n"),
		"CREATE INDEX IF NOT EXISTS chat_messages_chat_idx ON chat_messages (chat_id, seq)",
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS transactions (",
			"    id BIGSERIAL PRIMARY KEY,",
			"    user_id TEXT NOT NULL,",
			"    description TEXT NOT NULL DEFAULT '',",
			"    category TEXT NOT NULL DEFAULT '',",
			"    amount NUMERIC(16, 2) NOT NULL,",
			"    type TEXT NOT NULL,",
			"    date TIMESTAMPTZ NOT NULL DEFAULT NOW()",
			")",
		}, "\n"),
		"CREATE INDEX IF NOT EXISTS transactions_user_date_idx ON transactions (user_id, date DESC)",
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS holdings (",
			"    id BIGSERIAL PRIMARY KEY,",
			"    user_id TEXT NOT NULL,",
			"    name TEXT NOT NULL DEFAULT '',",
			"    ticker TEXT NOT NULL,",
			"    value NUMERIC(16, 2) NOT NULL DEFAULT 0,",
			"    gain NUMERIC(16, 2) NOT NULL DEFAULT 0",
			")",
		}, "\n"),
	}

	for _, stmt := range statements {
		if _, err := p.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}

	return nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
