package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/wanderapp/wander/internal/observability"
)

// FileStore implements Store as a single JSON document on disk, written
// synchronously on every mutation so storage never lags state by more than
// one update. The local analogue of browser storage.
type FileStore struct {
	mu     sync.Mutex
	path   string
	data   map[string]json.RawMessage
	logger *zap.Logger
}

// NewFileStore opens (or creates) the store at path. An unreadable or
// corrupt document is discarded and the store starts empty; startup never
// fails on bad persisted data.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	fs := &FileStore{
		path:   path,
		data:   make(map[string]json.RawMessage),
		logger: logger,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read storage file: %w", err)
		}
		return fs, nil
	}

	if err := json.Unmarshal(raw, &fs.data); err != nil {
		logger.Warn("discarding corrupt storage file", zap.String("path", path), zap.Error(err))
		fs.data = make(map[string]json.RawMessage)
	}
	return fs, nil
}

func (f *FileStore) Get(key string) (json.RawMessage, bool) {
	f.mu.Lock()
	raw, ok := f.data[key]
	if !ok {
		f.mu.Unlock()
		return nil, false
	}
	if !heal(raw) {
		delete(f.data, key)
		f.flushLocked()
		f.mu.Unlock()
		observability.StorageSelfHealsTotal.WithLabelValues(key).Inc()
		return nil, false
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	f.mu.Unlock()
	return out, true
}

func (f *FileStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = raw
	return f.flushLocked()
}

func (f *FileStore) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return
	}
	delete(f.data, key)
	if err := f.flushLocked(); err != nil {
		f.logger.Error("storage flush after remove", zap.String("key", key), zap.Error(err))
	}
}

// flushLocked writes the whole document via a temp file + rename so a crash
// mid-write cannot corrupt the previous copy. Caller holds f.mu.
func (f *FileStore) flushLocked() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
