package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	logx "tubebot/pkg/logx"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS videos (videoId TEXT PRIMARY KEY)`

// pgxPool is the subset of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type postgresStore struct {
	pool pgxPool
	log  logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (SeenStore, error) {
	dsn := strings.TrimSpace(cfg.URL)
	if dsn == "" {
		return nil, errors.New("storage.url is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 4

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	st, err := newPostgresStore(ctx, pool, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres store ready", logx.String("host", pcfg.ConnConfig.Host))
	return st, nil
}

func newPostgresStore(ctx context.Context, pool pgxPool, log logx.Logger) (*postgresStore, error) {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, err
	}
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE videoId = $1)`, id).Scan(&ok)
	if err != nil {
		return false, wrap("exists", id, err)
	}
	return ok, nil
}

func (s *postgresStore) Insert(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return wrap("insert", id, ErrEmptyID)
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO videos (videoId) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	return wrap("insert", id, err)
}

func (s *postgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		return 0, wrap("count", "", err)
	}
	return n, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
