package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
	lockTimeoutMsg     = "could not acquire token lock - another taskboard process may be running"
)

// FileTokenStore keeps the token in a 0600 file. Concurrent CLI invocations
// coordinate through a lock file next to it.
type FileTokenStore struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
}

// NewFileTokenStore returns a store writing to path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path, lockPath: path + ".lock", lockTimeout: defaultLockTimeout}
}

// DefaultTokenPath returns the per-user location of the token file.
func DefaultTokenPath(profile string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(dir, "taskboard", profile+".token"), nil
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Load(ctx context.Context) (string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	unlock, err := s.acquire(ctx, false)
	if err != nil {
		return "", err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (s *FileTokenStore) Save(ctx context.Context, token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear(ctx context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// acquire takes the lock file, shared for reads and exclusive for writes.
// It returns an unlock function that must be deferred by the caller.
func (s *FileTokenStore) acquire(ctx context.Context, exclusive bool) (unlock func(), err error) {
	fl := flock.New(s.lockPath)
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)

	var locked bool
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if !locked || err != nil {
		cancel()
		return nil, errors.New(lockTimeoutMsg)
	}

	return func() {
		_ = fl.Unlock()
		cancel()
	}, nil
}
