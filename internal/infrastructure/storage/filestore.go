package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"NewsRadar/internal/ports"
)

// FileStore keeps delivered keys in a newline-delimited text file, oldest
// first. Every commit rewrites the whole file; at the default retention of
// a few thousand short lines that is cheaper than maintaining an index.
type FileStore struct {
	path      string
	retention int
	mu        sync.Mutex
}

var _ ports.DeliverableStore = (*FileStore)(nil)

// NewFileStore binds a store to path, keeping at most retention keys.
func NewFileStore(path string, retention int) *FileStore {
	return &FileStore{path: path, retention: retention}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored keys oldest first. A missing file and its
// directory are created empty.
func (s *FileStore) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s.read()
}

// Commit appends keys that are not stored yet and evicts the oldest entries
// beyond the retention cap. The file is replaced atomically.
func (s *FileStore) Commit(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return err
	}

	merged := mergeKeys(existing, keys, s.retention)
	return s.write(merged)
}

func (s *FileStore) ensure() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	return f.Close()
}

func (s *FileStore) read() ([]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			keys = append(keys, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	return keys, nil
}

func (s *FileStore) write(keys []string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".deliverables-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, k := range keys {
		if _, err := w.WriteString(k + "\n"); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write store: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	tmpName = ""
	return nil
}

// mergeKeys appends unseen keys (newlines flattened) and keeps the newest
// retention entries. retention <= 0 disables eviction.
func mergeKeys(existing, keys []string, retention int) []string {
	seen := make(map[string]struct{}, len(existing)+len(keys))
	merged := make([]string, 0, len(existing)+len(keys))
	add := func(k string) {
		k = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(k, "\r", " "), "\n", " "))
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		merged = append(merged, k)
	}
	for _, k := range existing {
		add(k)
	}
	for _, k := range keys {
		add(k)
	}

	if retention > 0 && len(merged) > retention {
		merged = merged[len(merged)-retention:]
	}
	return merged
}
