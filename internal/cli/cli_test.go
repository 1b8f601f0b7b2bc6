package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/curator/internal/model"
)

func TestLoadConfig_DefaultsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o-mini
editor:
  snr_threshold: 6
oracle:
  initial_backoff: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CURATOR_EDITOR_IMPORTANCE_THRESHOLD", "7")
	t.Setenv("CURATOR_HISTORY_PATH", "/tmp/curator-history.json")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	v := viper.New()
	configureViper(v, path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("file values not applied: %+v", cfg.LLM)
	}
	if cfg.Editor.SNRThreshold != 6 || cfg.Editor.ImportanceThreshold != 7 || cfg.Editor.BreakingThreshold != 8 {
		t.Errorf("unexpected editor config %+v", cfg.Editor)
	}
	if cfg.History.Path != "/tmp/curator-history.json" {
		t.Errorf("env value not applied: %s", cfg.History.Path)
	}
	if cfg.Oracle.InitialBackoff != 2*time.Second || cfg.Oracle.MaxBackoff != 15*time.Second {
		t.Errorf("unexpected backoff %v/%v", cfg.Oracle.InitialBackoff, cfg.Oracle.MaxBackoff)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected provider credential from OPENAI_API_KEY, got %q", cfg.LLM.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Editor.SNRThreshold != 5 || cfg.History.Backend != "file" {
		t.Errorf("unexpected round-tripped config %+v", cfg)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestRedacted(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "secret"
	cfg.History.DatabaseURL = "postgres://u:p@h/db"
	r := redacted(cfg)
	if r.LLM.APIKey != "***" || r.History.DatabaseURL != "***" {
		t.Errorf("credentials not redacted: %+v", r.LLM)
	}
	if cfg.LLM.APIKey != "secret" {
		t.Error("redaction must not modify the original")
	}
}

func TestRenderDigest(t *testing.T) {
	d := &model.Digest{
		Date:  "2026-03-02",
		RunID: "run-1",
		Stories: []model.Story{{
			ClusterID:       "abc",
			Headline:        "ECB raises rates",
			CoreFact:        "The deposit rate is 2.5%.",
			ImportanceScore: 9,
			SNRScore:        8,
			BreakingScore:   9,
			IsBreaking:      true,
			Sources:         []string{"https://www.reuters.com/markets/ecb"},
			LanguageMix:     map[string]int{"fr": 1, "en": 2},
		}},
	}
	out := renderDigest(d)
	for _, want := range []string{"2026-03-02", "ECB raises rates", "BREAKING", "importance 9", "en:2 fr:1", "reuters.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered digest missing %q:\n%s", want, out)
		}
	}

	summary := renderSummary(d, true)
	if !strings.Contains(summary, "Dry run produced 1 stories") || !strings.Contains(summary, "! [ 9/ 8] ECB raises rates") {
		t.Errorf("unexpected summary:\n%s", summary)
	}
}

func TestRenderEmpty(t *testing.T) {
	if out := renderDigest(&model.Digest{Date: "2026-03-02"}); !strings.Contains(out, "No story cleared") {
		t.Errorf("unexpected empty digest rendering:\n%s", out)
	}
	if out := renderArchive(model.ArchiveIndex{}); !strings.Contains(out, "No digests") {
		t.Errorf("unexpected empty archive rendering:\n%s", out)
	}
}

func TestRunChecks_OfflineFreshInstall(t *testing.T) {
	dir := t.TempDir()
	personaPath := filepath.Join(dir, "memory.md")
	if err := os.WriteFile(personaPath, []byte("## Interests\n- ECB rates\n\n## Muted Topics\n- celebrity\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3.1"
	cfg.PersonaPath = personaPath
	cfg.History.Path = filepath.Join(dir, "history.json")
	cfg.OutputPath = filepath.Join(dir, "out", "latest.json")

	results := runChecks(context.Background(), cfg, true)
	if len(results) != 5 {
		t.Fatalf("expected 5 checks, got %+v", results)
	}
	byName := map[string]checkResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if r := byName["history (file)"]; r.Err == nil || !r.Warn {
		t.Errorf("expected missing history to warn, got %+v", r)
	}
	if r := byName["output"]; r.Err != nil {
		t.Errorf("expected output dir to be writable, got %v", r.Err)
	}
	if r := byName["persona"]; r.Err != nil || !strings.Contains(r.Detail, "1 interests") {
		t.Errorf("unexpected persona check %+v", r)
	}

	out := renderChecks(results)
	if !strings.Contains(out, "skipped") {
		t.Errorf("expected skipped oracle in output, got %q", out)
	}
}

func TestRunChecks_InvalidConfigStops(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = ""
	results := runChecks(context.Background(), cfg, true)
	if len(results) != 1 || results[0].Err == nil {
		t.Errorf("expected a single failing config check, got %+v", results)
	}
}
