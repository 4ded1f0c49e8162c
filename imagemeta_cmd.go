package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picdock/engine/pkg/imagemeta"
)

func newImageMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-image-metadata <file>",
		Short: "Probe a local file for width, height, aspect ratio, size, and format",
		Args:  cobra.ExactArgs(1),
		RunE:  runImageMetadata,
	}
}

func runImageMetadata(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	meta, err := imagemeta.Probe(args[0])
	if err != nil {
		return fmt.Errorf("get-image-metadata: %w", err)
	}

	if cc.JSON {
		return printJSON(meta)
	}

	fmt.Printf("width:        %d\n", meta.Width)
	fmt.Printf("height:       %d\n", meta.Height)
	fmt.Printf("aspect_ratio: %.4f\n", meta.AspectRatio)
	fmt.Printf("file_size:    %s\n", formatSize(meta.FileSize))
	fmt.Printf("format:       %s\n", meta.Format)

	return nil
}
