package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/orderflow/internal/core/config"
	"github.com/vietddude/orderflow/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dead-letter queue statistics from the database",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		fmt.Println("No database configured; status needs PostgreSQL storage")
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

	var orderCount int
	if err := db.GetContext(ctx, &orderCount, "SELECT COUNT(*) FROM orders"); err != nil {
		slog.Error("Failed to count orders", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Processed orders: %d\n\n", orderCount)

	rows, err := db.QueryContext(ctx,
		"SELECT status, failure_category, COUNT(*) FROM failed_orders GROUP BY status, failure_category ORDER BY status, failure_category")
	if err != nil {
		slog.Error("Failed to query failed orders", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCATEGORY\tCOUNT")

	for rows.Next() {
		var status, category string
		var count int
		if err := rows.Scan(&status, &category, &count); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", status, category, count)
	}
	_ = w.Flush()
}
