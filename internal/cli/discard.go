package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/orderflow/internal/core/config"
	"github.com/vietddude/orderflow/internal/infra/storage/postgres"
)

var discardCmd = &cobra.Command{
	Use:   "discard [failed_order_id]",
	Short: "Discard a pending failed order without reprocessing it",
	Args:  cobra.ExactArgs(1),
	Run:   runDiscard,
}

func init() {
	rootCmd.AddCommand(discardCmd)
}

func runDiscard(cmd *cobra.Command, args []string) {
	id := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		fmt.Println("No database configured; discard needs PostgreSQL storage")
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

	// Direct SQL keeps this usable while the service is down. Only pending
	// records are eligible; terminal ones are left untouched.
	query := "UPDATE failed_orders SET status = 'DISCARDED' WHERE id = $1 AND status = 'PENDING'"
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Error("Failed to discard order", "error", err)
		os.Exit(1)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		fmt.Printf("No pending failed order with id %s\n", id)
		os.Exit(1)
	}
	fmt.Printf("Discarded failed order %s\n", id)
}
