// Package blob stores uploaded attachment payloads on disk and serves them
// back over HTTP. Names are regenerated server-side so clients cannot collide
// with or overwrite each other's files.
package blob

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("blob not found")

// maxBlobSize caps one upload at 25 MiB.
const maxBlobSize = 25 << 20

type Store struct {
	mu  sync.RWMutex
	dir string
}

func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "blobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Put writes the payload under a fresh unique name and returns that name.
// The original filename only contributes its extension.
func (s *Store) Put(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	if len(data) > maxBlobSize {
		return "", errors.New("payload too large")
	}

	var b [12]byte
	_, _ = rand.Read(b[:])
	stored := hex.EncodeToString(b[:]) + safeExt(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.dir, stored), data, 0o644); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *Store) Get(name string) ([]byte, error) {
	clean, ok := cleanName(name)
	if !ok {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := os.ReadFile(filepath.Join(s.dir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) Delete(name string) error {
	clean, ok := cleanName(name)
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.dir, clean))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// cleanName rejects anything that could escape the blob directory.
func cleanName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
