package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/picdock/engine/internal/dispatcher"
	"github.com/picdock/engine/internal/model"
	"github.com/picdock/engine/internal/progress"
	"github.com/picdock/engine/pkg/imagemeta"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Dispatch a local image file to the enabled backends",
		Long: `Fan a single file out to the enabled backends with bounded concurrency
(at most 3 at a time), elect the first backend in input order that
succeeded as primary, and persist a history record — unless every backend
failed, in which case no record is written.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().StringSlice("backends", nil, "comma-separated backend ids to use instead of the configured enabled_backends")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	filePath := args[0]

	backends, err := resolveBackends(cmd, cc.Cfg)
	if err != nil {
		return err
	}

	uploadID := uuid.NewString()

	bus := progress.New(256)

	onProgress := func(id model.BackendID, progressBytes, totalBytes int64) {
		bus.SinkFor(id, uploadID)(progressBytes, totalBytes)
	}

	result, dispatchErr := cc.Engine.Dispatcher.Dispatch(ctx, filePath, backends, cc.Cfg, onProgress)

	bus.Close()
	drainProgress(cc, bus)

	if dispatchErr != nil {
		return fmt.Errorf("upload: %w", dispatchErr)
	}

	record := buildHistoryRecord(filePath, result)

	if err := cc.Engine.History.Insert(ctx, record); err != nil {
		return fmt.Errorf("upload: persisting history record: %w", err)
	}

	return printUploadResult(cc, record)
}

// resolveBackends returns the --backends override if set, otherwise the
// config's enabled_backends, failing fast (no side effects) if both are
// empty — spec §4.3 edge case.
func resolveBackends(cmd *cobra.Command, cfg model.UserConfig) ([]model.BackendID, error) {
	override, err := cmd.Flags().GetStringSlice("backends")
	if err != nil {
		return nil, err
	}

	if len(override) > 0 {
		ids := make([]model.BackendID, len(override))
		for i, s := range override {
			ids[i] = model.BackendID(strings.TrimSpace(s))
		}

		return ids, nil
	}

	if len(cfg.EnabledBackends) == 0 {
		return nil, fmt.Errorf("upload: no enabled backend (enabled_backends is empty in config; pass --backends)")
	}

	return cfg.EnabledBackends, nil
}

// drainProgress reads every buffered event off bus after the dispatch has
// settled (no further writes occur once Dispatch returns, since fan-out is
// synchronous) and prints a compact per-backend progress line for each,
// skipped entirely in quiet mode.
func drainProgress(cc *CLIContext, bus *progress.Bus) {
	if cc.Quiet {
		for range bus.Events() {
		}

		return
	}

	for evt := range bus.Events() {
		cc.Statusf("  %-10s %3d%% (%d/%d bytes)\n", evt.BackendID, formatPercent(evt.ProgressBytes, evt.TotalBytes), evt.ProgressBytes, evt.TotalBytes)
	}
}

func buildHistoryRecord(filePath string, result *dispatcher.Result) model.HistoryRecord {
	imgMeta := model.ImageMeta{}

	if meta, err := imagemeta.Probe(filePath); err == nil {
		w, h, ar, sz := meta.Width, meta.Height, meta.AspectRatio, meta.FileSize
		imgMeta = model.ImageMeta{
			Width:       &w,
			Height:      &h,
			AspectRatio: &ar,
			FileSize:    &sz,
			Format:      meta.Format,
		}
	}

	return model.HistoryRecord{
		ID:             uuid.NewString(),
		TimestampMs:    time.Now().UnixMilli(),
		LocalFileName:  filepath.Base(filePath),
		FilePath:       filePath,
		PrimaryBackend: result.PrimaryBackend,
		Results:        result.Results,
		GeneratedLink:  result.PrimaryURL,
		ImageMeta:      imgMeta,
	}
}

func printUploadResult(cc *CLIContext, record model.HistoryRecord) error {
	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(record)
	}

	fmt.Printf("Uploaded %s\n", record.LocalFileName)
	fmt.Printf("  primary:  %s\n", record.PrimaryBackend)
	fmt.Printf("  link:     %s\n", record.GeneratedLink)

	for _, r := range record.Results {
		if r.Status == model.AttemptSuccess {
			fmt.Printf("  %-10s ok\n", r.BackendID)
		} else {
			fmt.Printf("  %-10s failed: %s\n", r.BackendID, r.Error)
		}
	}

	return nil
}
