package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	logx "tubebot/pkg/logx"
)

func openForTest(t *testing.T, cfg Config) SeenStore {
	t.Helper()
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open %s: %v", cfg.Driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func backends(t *testing.T) map[string]func(t *testing.T) SeenStore {
	return map[string]func(t *testing.T) SeenStore{
		"memory": func(t *testing.T) SeenStore { return openForTest(t, Config{Driver: "memory"}) },
		"file": func(t *testing.T) SeenStore {
			return openForTest(t, Config{Driver: "file", Path: filepath.Join(t.TempDir(), "seen.db")})
		},
		"sqlite": func(t *testing.T) SeenStore {
			return openForTest(t, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "seen.db")})
		},
		"redis": func(t *testing.T) SeenStore {
			mr := miniredis.RunT(t)
			return openForTest(t, Config{Driver: "redis", URL: "redis://" + mr.Addr()})
		},
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	t.Parallel()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := open(t)

			if err := st.Insert(ctx, "abc"); err != nil {
				t.Fatalf("insert: %v", err)
			}
			n1, err := st.Count(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if err := st.Insert(ctx, "abc"); err != nil {
				t.Fatalf("second insert: %v", err)
			}
			n2, _ := st.Count(ctx)
			if n1 != 1 || n2 != 1 {
				t.Fatalf("count after duplicate insert: %d -> %d", n1, n2)
			}
		})
	}
}

func TestExistsHasNoSideEffect(t *testing.T) {
	t.Parallel()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := open(t)

			ok, err := st.Exists(ctx, "missing")
			if err != nil || ok {
				t.Fatalf("exists(missing)=%v,%v", ok, err)
			}
			if n, _ := st.Count(ctx); n != 0 {
				t.Fatalf("exists inserted: count=%d", n)
			}
			_ = st.Insert(ctx, "x")
			if ok, _ := st.Exists(ctx, "x"); !ok {
				t.Fatal("expected x to exist")
			}
		})
	}
}

func TestInsertRejectsEmptyID(t *testing.T) {
	t.Parallel()
	st := NewMemory()
	err := st.Insert(context.Background(), " ")
	var se *StoreError
	if !errors.As(err, &se) || !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected StoreError(ErrEmptyID), got %v", err)
	}
	if se.Op != "insert" {
		t.Fatalf("op=%q", se.Op)
	}
}

func TestDurableBackendsSurviveReopen(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "seen.db")}

			st, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			for _, id := range []string{"a", "b", "c"} {
				if err := st.Insert(ctx, id); err != nil {
					t.Fatalf("insert %s: %v", id, err)
				}
			}
			if err := st.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			st2 := openForTest(t, cfg)
			n, err := st2.Count(ctx)
			if err != nil || n != 3 {
				t.Fatalf("count after reopen=%d err=%v", n, err)
			}
			if ok, _ := st2.Exists(ctx, "b"); !ok {
				t.Fatal("b lost across reopen")
			}
		})
	}
}

func TestClosedStoreReturnsStoreError(t *testing.T) {
	t.Parallel()
	st := NewMemory("a")
	_ = st.Close()
	_, err := st.Count(context.Background())
	var se *StoreError
	if !errors.As(err, &se) || !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed StoreError, got %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFileStoreRecoversFromTornJournal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "seen.db")}

	journal := filepath.Join(dir, "seen.journal.jsonl")
	if err := os.WriteFile(journal, []byte(`{"id":"v1"}`+"\n"+`{"id":"v2`), 0o600); err != nil {
		t.Fatal(err)
	}
	// A directory in place of the snapshot temp file makes compaction fail,
	// so the torn tail stays in the journal.
	tmp := filepath.Join(dir, "seen.snapshot.json.tmp")
	if err := os.Mkdir(tmp, 0o755); err != nil {
		t.Fatal(err)
	}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.Insert(ctx, "v3"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := os.Remove(tmp); err != nil {
		t.Fatal(err)
	}

	st2 := openForTest(t, cfg)
	for id, want := range map[string]bool{"v1": true, "v2": false, "v3": true} {
		ok, err := st2.Exists(ctx, id)
		if err != nil || ok != want {
			t.Fatalf("exists(%s)=%v err=%v want %v", id, ok, err, want)
		}
	}
	if n, _ := st2.Count(ctx); n != 2 {
		t.Fatalf("count=%d", n)
	}
}
