package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Queue administration",
}

var queuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Tabulate every provisioned queue",
	Args:  cobra.NoArgs,
	RunE:  runQueuesList,
}

func init() {
	queuesCmd.AddCommand(queuesListCmd)
}

func runQueuesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rtime, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rtime.Close()

	infos, err := rtime.client.ListQueues(ctx)
	if err != nil {
		return fmt.Errorf("queues list: %w", err)
	}

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "QUEUE\tCREATED_AT\tPARTITIONED\tUNLOGGED")
	for _, q := range infos {
		fmt.Fprintf(out, "%s\t%s\t%t\t%t\n", q.Name, q.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), q.IsPartitioned, q.IsUnlogged)
	}
	return out.Flush()
}
