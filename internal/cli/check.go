package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/curator/internal/history"
	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
	"github.com/ppiankov/curator/internal/persona"
)

var checkSkipOracle bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Preflight the configuration, oracle, persona and history before a run",
	Long: `Check runs the same setup a pipeline run performs, without discovering
or publishing anything. The oracle is pinged with a model listing, which
does not spend a completion.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		results := runChecks(ctx, cfg, checkSkipOracle)
		fmt.Fprint(cmd.OutOrStdout(), renderChecks(results))
		for _, r := range results {
			if r.Err != nil && !r.Warn {
				return fmt.Errorf("preflight failed: %s", r.Name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkSkipOracle, "offline", false, "skip the oracle reachability check")
}

type checkResult struct {
	Name   string
	Detail string
	Err    error
	Warn   bool // reported but does not fail the check
}

func runChecks(ctx context.Context, cfg model.Config, skipOracle bool) []checkResult {
	var results []checkResult

	if err := cfg.Validate(); err != nil {
		// Nothing else is meaningful with an invalid config.
		return append(results, checkResult{Name: "config", Err: err})
	}
	results = append(results, checkResult{Name: "config", Detail: "valid"})

	if skipOracle {
		results = append(results, checkResult{Name: "oracle", Detail: "skipped"})
	} else {
		results = append(results, checkOracle(ctx, cfg))
	}

	prefs, err := persona.Load(cfg.PersonaPath)
	switch {
	case err != nil:
		results = append(results, checkResult{Name: "persona", Err: err})
	case len(prefs.Interests) == 0:
		results = append(results, checkResult{Name: "persona", Detail: cfg.PersonaPath, Err: errors.New("no interests listed"), Warn: true})
	default:
		results = append(results, checkResult{Name: "persona", Detail: fmt.Sprintf("%d interests, %d muted", len(prefs.Interests), len(prefs.MutedTopics))})
	}

	results = append(results, checkHistory(ctx, cfg.History))
	results = append(results, checkOutputDir(filepath.Dir(cfg.OutputPath)))
	return results
}

func checkOracle(ctx context.Context, cfg model.Config) checkResult {
	name := fmt.Sprintf("oracle (%s)", llm.CanonicalName(cfg.LLM.Provider))
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.Proxy))
	if err != nil {
		return checkResult{Name: name, Err: err}
	}
	if err := provider.Ping(ctx); err != nil {
		return checkResult{Name: name, Err: err}
	}
	return checkResult{Name: name, Detail: "reachable"}
}

func checkHistory(ctx context.Context, cfg model.HistoryConfig) checkResult {
	name := fmt.Sprintf("history (%s)", cfg.Backend)
	store, err := history.Open(ctx, cfg, false)
	if err != nil {
		return checkResult{Name: name, Err: err}
	}
	defer func() { _ = store.Close() }()

	h, err := store.Load(ctx)
	if errors.Is(err, history.ErrNotFound) {
		return checkResult{Name: name, Err: err, Warn: true}
	}
	if err != nil {
		return checkResult{Name: name, Err: err}
	}
	return checkResult{Name: name, Detail: fmt.Sprintf("%d records", len(h.Records))}
}

func checkOutputDir(dir string) checkResult {
	name := "output"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return checkResult{Name: name, Err: err}
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return checkResult{Name: name, Err: fmt.Errorf("%s is not writable: %w", dir, err)}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return checkResult{Name: name, Detail: dir}
}

func renderChecks(results []checkResult) string {
	var b strings.Builder
	for _, r := range results {
		switch {
		case r.Err == nil:
			fmt.Fprintf(&b, "%s %-20s %s\n", scoreStyle.Render("✓"), r.Name, mutedStyle.Render(r.Detail))
		case r.Warn:
			fmt.Fprintf(&b, "%s %-20s %v\n", scoreStyle.Render("!"), r.Name, r.Err)
		default:
			fmt.Fprintf(&b, "%s %-20s %v\n", breakingStyle.Render("✗"), r.Name, r.Err)
		}
	}
	return b.String()
}
