package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/model"
)

const archiveName = "archive.json"

// Writer persists digests next to the configured latest.json path.
type Writer struct {
	latestPath string
	dir        string
	logger     zerolog.Logger
}

// NewWriter creates a writer for latestPath. The dated digests and the
// archive index live in the same directory.
func NewWriter(latestPath string, logger zerolog.Logger) *Writer {
	return &Writer{
		latestPath: latestPath,
		dir:        filepath.Dir(latestPath),
		logger:     logger.With().Str("component", "digest").Logger(),
	}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// DatedName returns the archive file name for a digest date.
func DatedName(date string) string {
	return date + ".json"
}

type stagedFile struct {
	tmp    string
	target string
}

// Staged holds fully written temporary files awaiting Commit.
type Staged struct {
	files  []stagedFile
	done   bool
	logger zerolog.Logger
}

// Stage writes the digest, its dated copy and the updated archive index to
// temporary files. Nothing visible changes until Commit.
func (w *Writer) Stage(d *model.Digest) (*Staged, error) {
	if d == nil {
		return nil, errors.New("nil digest")
	}
	if d.Date == "" {
		return nil, errors.New("digest has no date")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	payload, err := marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal digest: %w", err)
	}

	archive, err := w.LoadArchive()
	if err != nil {
		return nil, err
	}
	archive = upsertArchive(archive, model.ArchiveEntry{
		Date:       d.Date,
		File:       DatedName(d.Date),
		StoryCount: len(d.Stories),
	})
	archivePayload, err := marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("marshal archive: %w", err)
	}

	s := &Staged{logger: w.logger}
	targets := []struct {
		path string
		data []byte
	}{
		{w.latestPath, payload},
		{filepath.Join(w.dir, DatedName(d.Date)), payload},
		{filepath.Join(w.dir, archiveName), archivePayload},
	}
	for _, t := range targets {
		tmp, err := writeTemp(t.path, t.data)
		if err != nil {
			s.Discard()
			return nil, fmt.Errorf("stage %s: %w", filepath.Base(t.path), err)
		}
		s.files = append(s.files, stagedFile{tmp: tmp, target: t.path})
	}
	return s, nil
}

// Commit renames the staged files into place.
func (s *Staged) Commit() error {
	if s.done {
		return errors.New("staged digest already finalized")
	}
	s.done = true
	for i, f := range s.files {
		if err := os.Rename(f.tmp, f.target); err != nil {
			for _, rest := range s.files[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("commit %s: %w", filepath.Base(f.target), err)
		}
		s.logger.Debug().Str("path", f.target).Msg("wrote digest file")
	}
	return nil
}

// Discard removes the staged files. It is safe to call after Commit.
func (s *Staged) Discard() {
	if s.done {
		return
	}
	s.done = true
	for _, f := range s.files {
		_ = os.Remove(f.tmp)
	}
}

// Targets lists the final paths the staged files will occupy.
func (s *Staged) Targets() []string {
	out := make([]string, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f.target)
	}
	return out
}

// LoadArchive reads archive.json; a missing index is empty.
func (w *Writer) LoadArchive() (model.ArchiveIndex, error) {
	var archive model.ArchiveIndex
	data, err := os.ReadFile(filepath.Join(w.dir, archiveName))
	if errors.Is(err, os.ErrNotExist) {
		return archive, nil
	}
	if err != nil {
		return archive, fmt.Errorf("read archive: %w", err)
	}
	if err := json.Unmarshal(data, &archive); err != nil {
		return archive, fmt.Errorf("parse archive: %w", err)
	}
	return archive, nil
}

// Load reads a published digest. An empty date reads latest.json.
func (w *Writer) Load(date string) (*model.Digest, error) {
	path := w.latestPath
	if date != "" {
		path = filepath.Join(w.dir, DatedName(date))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read digest: %w", err)
	}
	var d model.Digest
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse digest %s: %w", path, err)
	}
	return &d, nil
}

// upsertArchive replaces any entry for the same date and keeps newest first.
func upsertArchive(archive model.ArchiveIndex, entry model.ArchiveEntry) model.ArchiveIndex {
	kept := make([]model.ArchiveEntry, 0, len(archive.Digests)+1)
	kept = append(kept, entry)
	for _, e := range archive.Digests {
		if e.Date != entry.Date {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Date > kept[j].Date
	})
	archive.Digests = kept
	return archive
}

func marshal(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func writeTemp(target string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
