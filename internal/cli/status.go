package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trending-service/internal/core/config"
	redisclient "trending-service/internal/infra/redis"
	"trending-service/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's item counts and the current retry state of all sources",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()
	initLogging(slog.LevelWarn)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("status requires a database url")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	printItemCounts(ctx, db)
	printRetryState(ctx, db)
	printPendingNotifications(ctx, db)

	if cfg.Redis.URL != "" {
		printRefreshQueue(ctx, cfg.Redis)
	}
}

func printItemCounts(ctx context.Context, db *postgres.DB) {
	stats, err := postgres.NewItemRepo(db).GetDailyStats(ctx, time.Now())
	if err != nil {
		slog.Error("Failed to query item counts", "error", err)
		os.Exit(1)
	}

	sources := make([]string, 0, len(stats))
	for name := range stats {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tITEMS TODAY")
	for _, name := range sources {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", name, stats[name])
	}
	if len(sources) == 0 {
		_, _ = fmt.Fprintln(w, "(none)\t0")
	}
	_ = w.Flush()
}

func printRetryState(ctx context.Context, db *postgres.DB) {
	repo := postgres.NewFailureRepo(db)

	pending, err := repo.GetPendingFailures(ctx)
	if err != nil {
		slog.Error("Failed to query pending failures", "error", err)
		os.Exit(1)
	}
	if len(pending) == 0 {
		fmt.Println("\nNo pending retries.")
		return
	}

	ready, err := repo.GetReadyToRetry(ctx, 100)
	if err != nil {
		slog.Error("Failed to query due retries", "error", err)
		os.Exit(1)
	}
	due := make(map[string]bool, len(ready))
	for _, f := range ready {
		due[f.ID] = true
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tRETRIES\tNEXT RETRY\tSTATE\tLAST ERROR")
	for _, f := range pending {
		next := "-"
		if f.NextRetryAt != nil {
			next = f.NextRetryAt.Format("15:04:05")
		}
		state := "waiting"
		if due[f.ID] {
			state = "due"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", f.Source, f.RetryCount, next, state, truncate(f.ErrorMessage, 48))
	}
	_ = w.Flush()
}

func printPendingNotifications(ctx context.Context, db *postgres.DB) {
	pending, err := postgres.NewNotificationRepo(db).GetPending(ctx, 50)
	if err != nil {
		slog.Error("Failed to query pending notifications", "error", err)
		os.Exit(1)
	}
	if len(pending) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PENDING NOTIFICATION\tCREATED")
	for _, n := range pending {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", n.Type, n.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func printRefreshQueue(ctx context.Context, cfg redisclient.Config) {
	client, err := redisclient.NewClient(cfg)
	if err != nil {
		slog.Warn("Failed to connect to Redis", "error", err)
		return
	}
	defer func() {
		_ = client.Close()
	}()

	sources, err := client.PendingRefreshes(ctx)
	if err != nil {
		slog.Warn("Failed to query refresh queue", "error", err)
		return
	}
	if len(sources) > 0 {
		fmt.Printf("\nQueued refresh requests: %s\n", strings.Join(sources, ", "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
