package logx

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dailyLayout = "2006-01-02"

// dailyFile is an io.Writer that appends to dir/<date>.log and switches files
// when the local date changes.
type dailyFile struct {
	mu  sync.Mutex
	dir string
	now func() time.Time

	day string
	f   *os.File
}

func openDailyFile(dir string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &dailyFile{dir: dir, now: now}
	if err := d.rotateLocked(now().Format(dailyLayout)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if day := d.now().Format(dailyLayout); day != d.day || d.f == nil {
		if err := d.rotateLocked(day); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

func (d *dailyFile) rotateLocked(day string) error {
	path := filepath.Join(d.dir, day+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if d.f != nil {
		_ = d.f.Close()
	}
	d.f = f
	d.day = day
	return nil
}

// Path returns the file currently written to.
func (d *dailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return filepath.Join(d.dir, d.day+".log")
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
