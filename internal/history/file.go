package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/curator/internal/model"
)

// FileStore keeps history as a single JSON document, rewritten atomically.
type FileStore struct {
	path string
	opts Options
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string, opts Options) *FileStore {
	return &FileStore{path: path, opts: opts}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) (*model.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read("load")
}

// Append implements Store.
func (s *FileStore) Append(ctx context.Context, records []model.HistoryRecord, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.read("append")
	if err != nil {
		return err
	}
	h.Records = append(h.Records, records...)
	h.Retain(now, s.opts.RetentionDays)
	h.LastUpdated = now.UTC()

	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return s.write("append", h)
}

// Prune implements Store.
func (s *FileStore) Prune(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.read("prune")
	if err != nil {
		return 0, err
	}
	removed := h.Retain(now, s.opts.RetentionDays)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write("prune", h); err != nil {
		return 0, err
	}
	return removed, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read(op string) (*model.History, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if s.opts.Bootstrap {
			return &model.History{}, nil
		}
		return nil, &StoreError{Op: op, Err: fmt.Errorf("%s: %w", s.path, ErrNotFound)}
	}
	if err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &StoreError{Op: op, Err: fmt.Errorf("%s: empty file", s.path)}
	}

	var h model.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, &StoreError{Op: op, Err: fmt.Errorf("%s: corrupt history: %w", s.path, err)}
	}
	for i, r := range h.Records {
		if r.ClusterID == "" || len(r.MemberURLs) == 0 {
			return nil, &StoreError{Op: op, Err: fmt.Errorf("%s: corrupt history: entry %d lacks cluster_id or member_urls", s.path, i)}
		}
	}
	return &h, nil
}

func (s *FileStore) write(op string, h *model.History) error {
	if h.Records == nil {
		h.Records = []model.HistoryRecord{}
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("encode: %w", err)}
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return &StoreError{Op: op, Err: err}
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
