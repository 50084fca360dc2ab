// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/consulting-site/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	defaultOutcomeTable = "contact_outcomes"
	outcomeColumns      = 9
)

// OutcomeStoreConfig controls the connection pool used for outcome rows.
type OutcomeStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execPinger interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// OutcomeStore implements store.OutcomeRepository.
type OutcomeStore struct {
	pool  execPinger
	table string
}

var _ store.OutcomeRepository = (*OutcomeStore)(nil)

// NewOutcomeStore connects to Postgres using cfg.
func NewOutcomeStore(ctx context.Context, cfg OutcomeStoreConfig) (*OutcomeStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &OutcomeStore{pool: pool, table: table}, nil
}

// NewOutcomeStoreWithPool wraps an existing pool; tests pass a pgxmock pool.
func NewOutcomeStoreWithPool(pool execPinger, table string) (*OutcomeStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &OutcomeStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultOutcomeTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

const createOutcomeTable = `CREATE TABLE IF NOT EXISTS %[1]s (
	id          UUID PRIMARY KEY,
	finished_at TIMESTAMPTZ NOT NULL,
	state       TEXT        NOT NULL,
	class       TEXT        NOT NULL,
	status      INTEGER     NOT NULL,
	client_ip   TEXT        NOT NULL,
	provider_id TEXT,
	duration_ms BIGINT      NOT NULL,
	note        TEXT
);
CREATE INDEX IF NOT EXISTS %[1]s_finished_at_idx ON %[1]s (finished_at);`

// EnsureSchema creates the outcome table and its index when missing.
func (s *OutcomeStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(createOutcomeTable, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// InsertOutcomes writes all records in one statement.
func (s *OutcomeStore) InsertOutcomes(ctx context.Context, records []store.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (id, finished_at, state, class, status, client_ip, provider_id, duration_ms, note) VALUES ", s.table)
	args := make([]any, 0, len(records)*outcomeColumns)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * outcomeColumns
		sb.WriteByte('(')
		for c := 1; c <= outcomeColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteByte(')')
		args = append(args,
			rec.ID,
			rec.FinishedAt,
			rec.State,
			rec.Class,
			rec.Status,
			rec.ClientIP,
			rec.ProviderID,
			rec.DurationMs,
			rec.Note,
		)
	}
	sb.WriteString(" ON CONFLICT (id) DO NOTHING")

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %d outcomes: %w", len(records), err)
	}
	return nil
}

// Ping checks connectivity.
func (s *OutcomeStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *OutcomeStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
