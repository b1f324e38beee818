package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// File stores each key as <dir>/<escaped key>.json. Writes go through a
// temporary file and rename; a per-key flock serializes writers across processes.
type File struct {
	dir string
}

// OpenFile prepares dir for use as a file backend.
func OpenFile(dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file backend directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure file backend directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// Dir returns the backend directory.
func (f *File) Dir() string { return f.dir }

func (f *File) pathFor(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *File) lock(ctx context.Context, key string) (*flock.Flock, error) {
	lock := flock.New(f.pathFor(key) + ".lock")
	locked, err := lock.TryLockContext(ensureContext(ctx), lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", key)
	}
	return lock, nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	lock, err := f.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(f.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (f *File) Put(ctx context.Context, key string, value []byte) error {
	lock, err := f.lock(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	target := f.pathFor(key)
	tmp, err := os.CreateTemp(f.dir, ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	lock, err := f.lock(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(f.pathFor(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (f *File) Close() error { return nil }
