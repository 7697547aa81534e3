package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "tubebot/pkg/logx"
)

const compactEvery = 1000

// fileStore keeps the seen set in memory and persists it as:
//   - <prefix>.snapshot.json (sorted id list, rewritten on compaction)
//   - <prefix>.journal.jsonl (append-only, one record per insert)
//
// The journal is compacted into the snapshot on open and every
// compactEvery inserts.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	ids          map[string]struct{}

	writes int
	// torn is set when the journal may end mid-record; the next append
	// starts on a fresh line.
	torn bool
}

type journalRecord struct {
	ID string `json:"id"`
}

func openFile(cfg Config, log logx.Logger) (SeenStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	ids := map[string]struct{}{}
	if err := loadSnapshot(snapPath, ids); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := replayJournal(journalPath, ids); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	terminated, err := endsWithNewline(jf)
	if err != nil {
		_ = jf.Close()
		return nil, err
	}
	s := &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		ids:          ids,
		torn:         !terminated,
	}
	s.mu.Lock()
	if err := s.compactLocked(); err != nil {
		log.Warn("journal compact failed", logx.Err(err))
	}
	s.mu.Unlock()
	log.Info("file store ready", logx.String("snapshot", snapPath), logx.Int("ids", len(ids)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *fileStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, wrap("exists", id, ErrClosed)
	}
	_, ok := s.ids[id]
	return ok, nil
}

func (s *fileStore) Insert(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return wrap("insert", id, ErrEmptyID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return wrap("insert", id, ErrClosed)
	}
	if _, ok := s.ids[id]; ok {
		return nil
	}

	if s.torn {
		if _, err := s.journal.Write([]byte{'\n'}); err != nil {
			return wrap("insert", id, err)
		}
		s.torn = false
	}
	if err := json.NewEncoder(s.journal).Encode(journalRecord{ID: id}); err != nil {
		s.torn = true
		return wrap("insert", id, err)
	}
	if err := s.journal.Sync(); err != nil {
		return wrap("insert", id, err)
	}
	s.ids[id] = struct{}{}

	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, wrap("count", "", ErrClosed)
	}
	return int64(len(s.ids)), nil
}

func (s *fileStore) compactLocked() error {
	list := make([]string, 0, len(s.ids))
	for id := range s.ids {
		list = append(list, id)
	}
	sort.Strings(list)

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	if _, err := s.journal.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	s.torn = false
	return nil
}

// endsWithNewline reports whether f is empty or its last byte is '\n'.
func endsWithNewline(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	if fi.Size() == 0 {
		return true, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], fi.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

func loadSnapshot(path string, out map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var list []string
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return err
	}
	for _, id := range list {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return nil
}

func replayJournal(path string, out map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		// A torn final line from a crash is skipped.
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.ID != "" {
			out[r.ID] = struct{}{}
		}
	}
	return sc.Err()
}
