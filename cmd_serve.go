package main

import (
	"DialogueWidget/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Publish scenarios and run conversations over WebSocket",
	Long: `Serves /data/dialogues/<lang>.json for every scenario in the catalog and
runs one conversation per connection on /ws?lang=<code>.

Without --data-dir the built-in scenarios are served. With it, every
<lang>.json in the directory is published and reloaded when it changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "address to listen on (e.g., 127.0.0.1:8080)")
	serveCmd.Flags().String("data-dir", "", "directory of <lang>.json scenarios")
	serveCmd.Flags().String("history", "", "SQLite path for choice history (empty disables)")
	serveCmd.Flags().Bool("watch", true, "reload --data-dir on change")
	addPacingFlag(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		logger.Warn("config partially applied", zap.Error(err))
	}

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(cmd.Context())
}
