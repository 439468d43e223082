package main

import (
	"fmt"

	"DialogueWidget/internal/animation"
	"DialogueWidget/internal/config"
	"DialogueWidget/internal/dialogue"
	"DialogueWidget/internal/history"
	"DialogueWidget/internal/interpreter"
	"DialogueWidget/internal/loader"
	"DialogueWidget/internal/server"
	"DialogueWidget/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var playLogFile string

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Hold a conversation in the terminal",
	Long: `Runs one conversation in the terminal. Scenarios come from --source-url
(a running server or any site publishing /data/dialogues/<lang>.json), from
--data-dir, or from the built-in set.

Keys: up/down select, enter choose, r restart or retry, tab switch language,
q quit.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().String("lang", "en", "language to start in")
	playCmd.Flags().String("data-dir", "", "directory of <lang>.json scenarios")
	playCmd.Flags().String("source-url", "", "site root serving /data/dialogues/<lang>.json")
	playCmd.Flags().String("history", "", "SQLite path for choice history (empty disables)")
	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "write logs to this file")
	addPacingFlag(playCmd)
}

func runPlay(cmd *cobra.Command, _ []string) error {
	log, err := playLogger(playLogFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		log.Warn("config partially applied", zap.Error(err))
	}

	src, langs, err := playSource(cfg)
	if err != nil {
		return err
	}
	l, err := loader.New(src, loader.Options{
		Fallback:  cfg.FallbackLang,
		CacheSize: cfg.CacheSize,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	var recorder history.Recorder = history.Nop{}
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	out := &tui.Outbox{}
	engine := &tui.Engine{Out: out}
	interp := interpreter.New(l, interpreter.Options{
		SessionID:   uuid.NewString(),
		PacingDelay: cfg.PacingDelay,
		Navigator:   tui.Navigator{Out: out},
		Recorder:    recorder,
		Animation:   animation.NewBridge(engine, cfg.BridgeConfig(), animation.WithLogger(log)),
		Logger:      log,
	})
	defer interp.Close()

	ctx := cmd.Context()
	p := tea.NewProgram(tui.New(ctx, interp, langs, cfg.DefaultLang), tea.WithContext(ctx), tea.WithAltScreen())
	out.Attach(p)
	_ = engine.Initialize("terminal")
	defer engine.Cleanup()

	_, err = p.Run()
	return err
}

// playSource picks where scenarios come from and which languages to offer.
func playSource(cfg config.Config) (loader.Source, []string, error) {
	switch {
	case cfg.SourceURL != "":
		langs := []string{cfg.DefaultLang}
		if cfg.FallbackLang != cfg.DefaultLang {
			langs = append(langs, cfg.FallbackLang)
		}
		return loader.NewHTTPSource(cfg.SourceURL, cfg.FetchTimeout), langs, nil

	case cfg.DataDir != "":
		src := loader.DirSource{Dir: cfg.DataDir}
		langs, err := src.Languages()
		if err != nil {
			return nil, nil, fmt.Errorf("list scenarios in %s: %w", cfg.DataDir, err)
		}
		return src, langs, nil

	default:
		docs, err := server.SeedDocuments()
		if err != nil {
			return nil, nil, err
		}
		return loader.NewCatalogSource(docs), dialogue.SeedLanguages, nil
	}
}

func playLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
