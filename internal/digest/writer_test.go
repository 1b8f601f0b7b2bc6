package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/model"
)

func testDigest(date string, stories int) *model.Digest {
	d := &model.Digest{
		Date:        date,
		RunID:       "run-" + date,
		GeneratedAt: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
	}
	for i := 0; i < stories; i++ {
		d.Stories = append(d.Stories, model.Story{ClusterID: strings.Repeat("a", i+1), Headline: "h"})
	}
	return d
}

func TestStageCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	w := NewWriter(filepath.Join(dir, "latest.json"), zerolog.Nop())

	staged, err := w.Stage(testDigest("2026-03-02", 2))
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "latest.json")); !os.IsNotExist(err) {
		t.Fatalf("latest.json must not exist before commit, stat err %v", err)
	}
	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	latest, err := w.Load("")
	if err != nil {
		t.Fatalf("Load latest failed: %v", err)
	}
	if latest.RunID != "run-2026-03-02" || len(latest.Stories) != 2 {
		t.Errorf("unexpected latest digest %+v", latest)
	}
	if _, err := w.Load("2026-03-02"); err != nil {
		t.Errorf("dated digest missing: %v", err)
	}

	archive, err := w.LoadArchive()
	if err != nil {
		t.Fatalf("LoadArchive failed: %v", err)
	}
	if len(archive.Digests) != 1 || archive.Digests[0].File != "2026-03-02.json" || archive.Digests[0].StoryCount != 2 {
		t.Errorf("unexpected archive %+v", archive)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestArchiveNewestFirstAndReplacesSameDate(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "latest.json"), zerolog.Nop())

	for _, d := range []*model.Digest{
		testDigest("2026-03-01", 1),
		testDigest("2026-03-03", 3),
		testDigest("2026-03-02", 2),
		testDigest("2026-03-03", 0),
	} {
		staged, err := w.Stage(d)
		if err != nil {
			t.Fatalf("Stage %s failed: %v", d.Date, err)
		}
		if err := staged.Commit(); err != nil {
			t.Fatalf("Commit %s failed: %v", d.Date, err)
		}
	}

	archive, err := w.LoadArchive()
	if err != nil {
		t.Fatalf("LoadArchive failed: %v", err)
	}
	var dates []string
	for _, e := range archive.Digests {
		dates = append(dates, e.Date)
	}
	if got := strings.Join(dates, ","); got != "2026-03-03,2026-03-02,2026-03-01" {
		t.Errorf("unexpected archive order %s", got)
	}
	if archive.Digests[0].StoryCount != 0 {
		t.Errorf("expected rerun to replace same-date entry, got %d stories", archive.Digests[0].StoryCount)
	}
}

func TestDiscardLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "latest.json"), zerolog.Nop())

	staged, err := w.Stage(testDigest("2026-03-02", 1))
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if len(staged.Targets()) != 3 {
		t.Errorf("expected 3 staged targets, got %v", staged.Targets())
	}
	staged.Discard()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty output dir after discard, got %d entries", len(entries))
	}
	if err := staged.Commit(); err == nil {
		t.Error("expected commit after discard to fail")
	}
}

func TestStageRejectsUndated(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "latest.json"), zerolog.Nop())
	if _, err := w.Stage(&model.Digest{}); err == nil {
		t.Error("expected error for digest without date")
	}
}

func TestStageCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "archive.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewWriter(filepath.Join(dir, "latest.json"), zerolog.Nop())
	if _, err := w.Stage(testDigest("2026-03-02", 1)); err == nil {
		t.Error("expected error for corrupt archive")
	}
}
