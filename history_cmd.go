package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picdock/engine/internal/model"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the durable upload history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistorySearchCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history records, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}

	cmd.Flags().Int("page", 1, "1-indexed page number")
	cmd.Flags().Int("page-size", 20, "records per page")
	cmd.Flags().String("backend", "all", "filter by primary backend id, or \"all\"")

	return cmd
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	filter, _ := cmd.Flags().GetString("backend")

	result, err := cc.Engine.History.GetPage(cmd.Context(), page, pageSize, filter)
	if err != nil {
		return fmt.Errorf("history list: %w", err)
	}

	if cc.JSON {
		return printJSON(result)
	}

	printHistoryTable(result.Records)
	fmt.Printf("\n%d of %d record(s), has_more=%v\n", len(result.Records), result.Total, result.HasMore)

	return nil
}

func newHistorySearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Case-insensitive substring search over file names and links",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistorySearch,
	}

	cmd.Flags().String("backend", "all", "filter by primary backend id, or \"all\"")
	cmd.Flags().Int("limit", 20, "maximum records to return")
	cmd.Flags().Int("offset", 0, "records to skip")

	return cmd
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	filter, _ := cmd.Flags().GetString("backend")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	records, err := cc.Engine.History.Search(cmd.Context(), args[0], filter, limit, offset)
	if err != nil {
		return fmt.Errorf("history search: %w", err)
	}

	if cc.JSON {
		return printJSON(records)
	}

	printHistoryTable(records)

	return nil
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one history record in full",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	record, err := cc.Engine.History.GetByID(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("history show: %w", err)
	}

	if cc.JSON {
		return printJSON(record)
	}

	fmt.Printf("id:        %s\n", record.ID)
	fmt.Printf("file:      %s\n", record.LocalFileName)
	fmt.Printf("path:      %s\n", record.FilePath)
	fmt.Printf("uploaded:  %s\n", formatTime(record.Timestamp()))
	fmt.Printf("primary:   %s\n", record.PrimaryBackend)
	fmt.Printf("link:      %s\n", record.GeneratedLink)
	fmt.Println("results:")

	for _, r := range record.Results {
		if r.Status == model.AttemptSuccess {
			fmt.Printf("  %-10s ok      %s\n", r.BackendID, r.Result.URL)
		} else {
			fmt.Printf("  %-10s failed  %s\n", r.BackendID, r.Error)
		}
	}

	return nil
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id> [id...]",
		Short: "Delete one or more history records",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runHistoryDelete,
	}
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	if len(args) == 1 {
		if err := cc.Engine.History.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("history delete: %w", err)
		}
	} else if err := cc.Engine.History.DeleteMany(cmd.Context(), args); err != nil {
		return fmt.Errorf("history delete: %w", err)
	}

	cc.Statusf("deleted %d record(s)\n", len(args))

	return nil
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every history record",
		Args:  cobra.NoArgs,
		RunE:  runHistoryClear,
	}
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := cc.Engine.History.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}

	cc.Statusf("history cleared\n")

	return nil
}

func printHistoryTable(records []model.HistoryRecord) {
	headers := []string{"ID", "FILE", "PRIMARY", "UPLOADED", "LINK"}
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		rows = append(rows, []string{
			shortID(r.ID), r.LocalFileName, string(r.PrimaryBackend), formatTime(r.Timestamp()), r.GeneratedLink,
		})
	}

	printTable(os.Stdout, headers, rows)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}

	return id[:8]
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
