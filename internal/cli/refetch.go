package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trending-service/internal/core/config"
	redisclient "trending-service/internal/infra/redis"
)

var refetchCmd = &cobra.Command{
	Use:   "refetch [source...]",
	Short: "Queue one or more sources for an immediate refetch",
	Args:  cobra.MinimumNArgs(1),
	Run:   runRefetch,
}

func init() {
	rootCmd.AddCommand(refetchCmd)
}

func runRefetch(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()
	initLogging(slog.LevelWarn)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("refetch requires a redis url")
		os.Exit(1)
	}

	enabled := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.Enabled {
			enabled[src.Name] = true
		}
	}
	for _, name := range args {
		if !enabled[name] {
			fmt.Printf("Unknown or disabled source: %s\n", name)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	for _, name := range args {
		if err := client.PushRefresh(ctx, name); err != nil {
			slog.Error("Failed to queue refetch", "source", name, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Queued refetch for %s\n", name)
	}
}
