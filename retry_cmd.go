package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picdock/engine/internal/dispatcher"
	"github.com/picdock/engine/internal/model"
)

func newRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry a failed backend, or the whole record, for a history entry",
	}

	cmd.AddCommand(newRetrySingleCmd())
	cmd.AddCommand(newRetryAllCmd())

	return cmd
}

func newRetrySingleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "single <record-id> <backend-id>",
		Short: "Retry one backend, patching only that backend's result",
		Long: `Retries exactly one backend for a history record, after a network
precheck. The record's primary_backend and generated_link are left
unchanged — only the retried backend's entry in results flips on success.`,
		Args: cobra.ExactArgs(2),
		RunE: runRetrySingle,
	}
}

func runRetrySingle(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	recordID, backendID := args[0], model.BackendID(args[1])

	record, err := cc.Engine.History.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("retry single: loading record: %w", err)
	}

	onProgress := func(progressBytes, totalBytes int64) {
		cc.Statusf("  %-10s %3d%%\n", backendID, formatPercent(progressBytes, totalBytes))
	}

	err = cc.Engine.Retry.RetrySingle(ctx, recordID, backendID, record.FilePath, cc.Cfg, onProgress)
	if err != nil {
		return fmt.Errorf("retry single: %w", err)
	}

	cc.Statusf("%s: ok\n", backendID)

	return nil
}

func newRetryAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all <record-id>",
		Short: "Re-dispatch every enabled backend for a record",
		Long: `Re-dispatches all enabled backends for a record, after a network
precheck and an exponential backoff keyed on the record's current retry
count. On success the whole record's results, primary_backend, and
generated_link are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: runRetryAll,
	}
}

func runRetryAll(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	recordID := args[0]

	record, err := cc.Engine.History.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("retry all: loading record: %w", err)
	}

	enabled := cc.Cfg.EnabledBackends
	if len(enabled) == 0 {
		return fmt.Errorf("retry all: no enabled backend configured")
	}

	// HistoryRecord carries no retry_count — that field lives on the
	// ephemeral QueueItem (§3), which the CLI has no session-lifetime
	// instance of. Each invocation retries as if it were the first.
	retryCount := 0

	var onProgress dispatcher.ProgressFunc = func(id model.BackendID, progressBytes, totalBytes int64) {
		cc.Statusf("  %-10s %3d%%\n", id, formatPercent(progressBytes, totalBytes))
	}

	result, err := cc.Engine.Retry.RetryAll(ctx, recordID, retryCount, record.FilePath, enabled, cc.Cfg, onProgress)
	if err != nil {
		return fmt.Errorf("retry all: %w", err)
	}

	fmt.Printf("primary: %s\n", result.PrimaryBackend)
	fmt.Printf("link:    %s\n", result.PrimaryURL)

	return nil
}
