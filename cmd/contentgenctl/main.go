// Command contentgenctl drives the content-generation backend from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/config"
	"github.com/snarg/contentgen/internal/prompts"
)

var version = "dev"

// app holds the clients shared by every subcommand.
type app struct {
	envFile string
	apiURL  string
	verbose bool

	cfg       *config.Config
	analyzer  *analysis.Client
	prompts   *prompts.Client
	modifiers *prompts.Service
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "contentgenctl",
		Short:   "Generate process content and manage prompt modifiers",
		Version: version,
		Long: `contentgenctl calls the content-generation backend directly.

Available commands:
  analyze     - Generate content from a transcript
  modifiers   - List and edit prompt modifiers
  core-prompt - Show or replace the core system prompt
  health      - Check that the backend is reachable`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Path to .env file (default .env)")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "Backend URL (overrides CONTENTGEN_API_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log requests to stderr")

	root.AddCommand(
		newAnalyzeCmd(a),
		newModifiersCmd(a),
		newCorePromptCmd(a),
		newHealthCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(config.Overrides{EnvFile: a.envFile, APIURL: a.apiURL})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := zerolog.Nop()
	if a.verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	a.cfg = cfg
	a.analyzer = analysis.NewClient(cfg.APIURL, cfg.AnalysisTimeout)
	a.prompts = prompts.NewClient(cfg.APIURL, cfg.PromptsTimeout)
	a.modifiers = prompts.NewService(a.prompts, log)
	return nil
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the analysis and prompts endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			out := cmd.OutOrStdout()
			failed := false
			for _, c := range []struct {
				name  string
				check func(context.Context) error
			}{
				{"analysis", a.analyzer.Health},
				{"prompts", a.prompts.Health},
			} {
				if err := c.check(ctx); err != nil {
					fmt.Fprintf(out, "%-9s unreachable: %v\n", c.name, err)
					failed = true
					continue
				}
				fmt.Fprintf(out, "%-9s ok\n", c.name)
			}
			if failed {
				return fmt.Errorf("backend %s is not healthy", a.cfg.APIURL)
			}
			return nil
		},
	}
}
