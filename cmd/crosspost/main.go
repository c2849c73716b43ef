package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/logging"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crosspost",
	Short: "Publish one post to several social networks",
	Long: `CrossPost publishes a post with optional media to Twitter, LinkedIn,
Instagram and Threads in one request, and reports the outcome per network.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "error", err)
		}

		var err error
		if cfg, err = config.LoadConfig(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.Setup(cfg.LogLevel)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
