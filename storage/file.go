package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const (
	lockSuffix      = ".lock"
	lockAttempts    = 20
	lockDelay       = time.Millisecond * 10
	lockMaxDelay    = time.Millisecond * 500
	dataFileMode    = 0o644
	defaultDirPerm  = 0o755
	tempFilePattern = ".*.tmp"
)

// FileRecord keeps a record in a single file guarded by an advisory lock on
// a sibling ".lock" file. Writes replace the data file atomically, so the
// lock only has to order read-modify-write cycles.
type FileRecord struct {
	path     string
	lockPath string
	attempts uint
}

func NewFileRecord(path string) (*FileRecord, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.Wrapf(err, "unable to create directory %v", dir)
	}
	return &FileRecord{
		path:     path,
		lockPath: path + lockSuffix,
		attempts: lockAttempts,
	}, nil
}

func (f *FileRecord) Path() string {
	return f.path
}

func (f *FileRecord) Load(ctx context.Context) ([]byte, error) {
	lock := flock.New(f.lockPath)
	err := f.acquire(ctx, lock.TryRLock)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()
	return f.read()
}

func (f *FileRecord) Update(ctx context.Context, fn func(data []byte) ([]byte, error)) error {
	lock := flock.New(f.lockPath)
	err := f.acquire(ctx, lock.TryLock)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	current, err := f.read()
	if err != nil {
		return err
	}
	updated, err := fn(current)
	if err != nil {
		return err
	}
	if bytes.Equal(current, updated) {
		return nil
	}
	return f.write(updated)
}

// acquire retries a non-blocking lock attempt with exponential backoff so a
// holder in another process delays us instead of blocking forever.
func (f *FileRecord) acquire(ctx context.Context, try func() (bool, error)) error {
	return retry.Do(
		func() error {
			ok, err := try()
			if err != nil {
				return retry.Unrecoverable(errors.Wrapf(err, "unable to lock %v", f.lockPath))
			}
			if !ok {
				return errors.Wrap(ErrLocked, f.path)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(lockDelay),
		retry.MaxDelay(lockMaxDelay),
		retry.MaxJitter(lockDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
}

func (f *FileRecord) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %v", f.path)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (f *FileRecord) write(data []byte) error {
	dir, base := filepath.Split(f.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+tempFilePattern)
	if err != nil {
		return errors.Wrapf(err, "unable to create temp file for %v", f.path)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrapf(err, "unable to write %v", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrapf(err, "unable to sync %v", tmpName)
	}
	if err := tmp.Chmod(dataFileMode); err != nil {
		cleanup()
		return errors.Wrapf(err, "unable to chmod %v", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "unable to close %v", tmpName)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "unable to replace %v", f.path)
	}
	return nil
}
