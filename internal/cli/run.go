package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/curator/internal/logging"
	"github.com/ppiankov/curator/internal/pipeline"
)

var (
	runBootstrap  bool
	runCandidates string
	runDryRun     bool
	runTimeout    time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily digest pipeline once",
	Long: `Run executes one full pipeline pass:
- Discover candidates from Google News and custom RSS feeds
- Filter them against the persona (muted topics, snoozes, relevance)
- Cluster coverage of the same event and drop already-published clusters
- Enrich each cluster with scraped content and a depth verdict
- Synthesize, score and gate stories, then publish the digest

Nothing is persisted unless every stage succeeds.

Example:
  curator run
  curator run --bootstrap                 # first run, no history yet
  curator run --candidates today.json     # skip discovery
  curator run --dry-run -v`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runBootstrap, "bootstrap", false, "start from an empty history when none exists")
	runCmd.Flags().StringVar(&runCandidates, "candidates", "", "read candidate articles from a JSON file instead of discovery")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run every stage but write nothing")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")
	runCmd.Flags().String("provider", "", "oracle provider (gemini, openai, anthropic, ollama)")
	runCmd.Flags().String("model", "", "oracle model name")
	runCmd.Flags().String("output", "", "path of latest.json")

	_ = viper.BindPFlag("llm.provider", runCmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", runCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("output_path", runCmd.Flags().Lookup("output"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	p, err := pipeline.New(cfg, pipeline.Options{
		Bootstrap:      runBootstrap,
		CandidatesPath: runCandidates,
		DryRun:         runDryRun,
	}, logger)
	if err != nil {
		return err
	}

	d, err := p.Run(ctx)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			logger.Error().Err(stageErr.Err).Str("stage", stageErr.Stage).Msg("run aborted, nothing published")
		}
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderSummary(d, runDryRun))
	return nil
}
