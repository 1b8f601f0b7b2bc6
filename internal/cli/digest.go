package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/curator/internal/digest"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Read published digests",
}

var digestShowCmd = &cobra.Command{
	Use:   "show [YYYY-MM-DD]",
	Short: "Render a published digest (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		date := ""
		if len(args) == 1 {
			date = args[0]
		}
		d, err := digest.NewWriter(cfg.OutputPath, zerolog.Nop()).Load(date)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderDigest(d))
		return nil
	},
}

var digestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived digests, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		archive, err := digest.NewWriter(cfg.OutputPath, zerolog.Nop()).LoadArchive()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderArchive(archive))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.AddCommand(digestShowCmd)
	digestCmd.AddCommand(digestListCmd)
}
