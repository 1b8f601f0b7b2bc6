package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "json", "debug")
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}

	logger.Info().Str("stage", "sentinel").Msg("done")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "curator" {
		t.Errorf("expected service=curator, got %v", line["service"])
	}
	if line["stage"] != "sentinel" {
		t.Errorf("expected stage=sentinel, got %v", line["stage"])
	}
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	if _, err := NewWithWriter(&bytes.Buffer{}, "json", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "json", "warn")
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}
