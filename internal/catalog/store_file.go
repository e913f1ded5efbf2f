package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"tailscale.com/atomicfile"
)

const (
	lockSuffix     = ".lock"
	lockRetryDelay = 10 * time.Millisecond
	filePerm       = 0o644
)

// FileStore keeps the collection as one JSON array at path.
//
// Replace writes to a temporary file and renames it over path, so readers
// never observe a half-written document. An advisory lock on path+".lock"
// serialises writers against each other and against readers.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Ping checks that the directory holding the collection is reachable.
// The file itself may legitimately be absent.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat store dir: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("store dir %s is not a directory", dir)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) ([]Product, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCollectionNotFound
	}

	fl := flock.New(s.path + lockSuffix)
	if _, err := fl.TryRLockContext(ctx, lockRetryDelay); err != nil {
		if !lockFileUnavailable(err) {
			return nil, fmt.Errorf("lock products file: %w", err)
		}
		// Read-only directory: nobody can replace the file here either,
		// so an unlocked read is safe.
	} else {
		defer func() { _ = fl.Unlock() }()
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read products file: %w", err)
	}
	return decodeCollection(raw)
}

func (s *FileStore) Replace(ctx context.Context, products []Product) error {
	raw, err := encodeCollection(products)
	if err != nil {
		return err
	}

	fl := flock.New(s.path + lockSuffix)
	if _, err := fl.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock products file: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	if err := atomicfile.WriteFile(s.path, raw, filePerm); err != nil {
		return fmt.Errorf("write products file: %w", err)
	}
	return nil
}

// lockFileUnavailable reports whether the lock file could not be created
// because the directory does not accept writes.
func lockFileUnavailable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}
