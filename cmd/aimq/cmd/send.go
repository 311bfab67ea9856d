package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aimq-dev/aimq/value"
)

// Exit codes match spec.md §6's CLI surface: 2 for malformed JSON
// input, 3 for transport failure during send.
const (
	exitBadPayload = 2
	exitTransport  = 3
)

var sendCmd = &cobra.Command{
	Use:   "send <queue> <json>",
	Short: "Enqueue one JSON object payload",
	Args:  cobra.ExactArgs(2),
	RunE:  runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	queueName, raw := args[0], args[1]

	payload, err := value.ParseObject([]byte(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: payload is not a JSON object: %v\n", err)
		os.Exit(exitBadPayload)
	}

	ctx := cmd.Context()
	rtime, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rtime.Close()

	id, err := rtime.client.Send(ctx, queueName, payload, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(exitTransport)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

var sendBatchCmd = &cobra.Command{
	Use:   "send-batch <queue> <file.json>",
	Short: "Enqueue every object in a JSON array file",
	Args:  cobra.ExactArgs(2),
	RunE:  runSendBatch,
}

func runSendBatch(cmd *cobra.Command, args []string) error {
	queueName, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("send-batch: reading %q: %w", path, err)
	}

	var rawObjs []json.RawMessage
	if err := json.Unmarshal(raw, &rawObjs); err != nil {
		fmt.Fprintf(os.Stderr, "send-batch: %q is not a JSON array: %v\n", path, err)
		os.Exit(exitBadPayload)
	}
	payloads := make([]value.Object, len(rawObjs))
	for i, r := range rawObjs {
		obj, err := value.ParseObject(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "send-batch: element %d is not a JSON object: %v\n", i, err)
			os.Exit(exitBadPayload)
		}
		payloads[i] = obj
	}

	ctx := cmd.Context()
	rtime, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rtime.Close()

	ids, err := rtime.client.SendBatch(ctx, queueName, payloads, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send-batch: %v\n", err)
		os.Exit(exitTransport)
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
