package main

import (
	"fmt"
	"time"

	"DialogueWidget/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dialogue",
	Short: "Scripted conversation widget runtime",
	Long: `Runs scripted, branching conversations: a server that publishes scenario
documents and drives one conversation per WebSocket session, a terminal
player, and a validator for scenario files.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The terminal player owns stdout/stderr; it builds its own logger.
		if cmd.Name() == "play" {
			logger = zap.NewNop()
			return nil
		}
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to YAML config (missing file keeps defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

// resolveConfig layers flags the user actually set over file and environment.
// A non-nil error means some layer was malformed; the returned config is
// still usable.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	o := config.Overrides{
		Addr:        stringFlag(flags, "addr"),
		DataDir:     stringFlag(flags, "data-dir"),
		SourceURL:   stringFlag(flags, "source-url"),
		DefaultLang: stringFlag(flags, "lang"),
		HistoryPath: stringFlag(flags, "history"),
	}
	if flags.Lookup("pacing") != nil && flags.Changed("pacing") {
		if d, err := flags.GetDuration("pacing"); err == nil {
			o.PacingDelay = &d
		}
	}
	if flags.Lookup("watch") != nil && flags.Changed("watch") {
		if b, err := flags.GetBool("watch"); err == nil {
			o.Watch = &b
		}
	}
	return config.Load(configPath, o)
}

func stringFlag(flags *pflag.FlagSet, name string) *string {
	if flags.Lookup(name) == nil || !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetString(name)
	if err != nil {
		return nil
	}
	return &v
}

func addPacingFlag(cmd *cobra.Command) {
	cmd.Flags().Duration("pacing", 600*time.Millisecond, "delay before a chosen transition commits (0 disables)")
}
