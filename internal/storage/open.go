package storage

import (
	"errors"
	"strings"

	logx "tubebot/pkg/logx"
)

const defaultRedisKey = "videos"

// Open initializes the configured store and creates its schema if absent.
func Open(cfg Config, log logx.Logger) (SeenStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	var (
		st  SeenStore
		err error
	)
	switch driver {
	case "", "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	case "file":
		st, err = openFile(cfg, log)
	case "postgres", "postgresql", "pgx":
		st, err = openPostgres(cfg, log)
	case "redis":
		st, err = openRedis(cfg, log)
	case "memory", "mem":
		st = NewMemory()
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, wrap("open", "", err)
	}
	log.Debug("store opened")
	return st, nil
}
