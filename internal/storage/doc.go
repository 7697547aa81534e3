// Package storage persists the set of item ids that have already been
// announced.
//
// Backends:
//   - sqlite: single-file database (default)
//   - file: JSON snapshot plus an append-only JSONL journal
//   - postgres: shared table via pgxpool
//   - redis: one set key
//   - memory: process-local, not durable
package storage
