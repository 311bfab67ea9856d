// Package cmd implements aimq's CLI surface: start, send, send-batch,
// and queues list. It is deliberately thin wiring over the core
// (worker.Worker, queue.Client) and carries none of the domain logic
// itself, grounded on storacha-piri's cmd/cli root command structure.
package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aimq",
	Short: "aimq runs queue-backed worker pipelines against PGMQ",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Ignore a missing .env: environment variables set directly
		// are equally valid, matching SherlockOS's cmd/server/main.go.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendBatchCmd)
	rootCmd.AddCommand(queuesCmd)
}

// Execute runs the CLI with ctx as the base context for cancellation.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
