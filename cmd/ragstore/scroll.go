package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragstore/internal/vectorstore"
)

func newScrollCmd(global *globalOptions) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "scroll",
		Short: "Print every record of the collection",
		Long: `Read the whole collection page by page and print one JSON object per
record to stdout. The record count goes to stderr.

If the backend fails mid-scan the records read so far are still printed.

Examples:
  ragstore scroll > dump.jsonl
  ragstore scroll --batch-size 1000 --collection docs`,
		Args: cobra.NoArgs,
		RunE: run(global, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			records := a.store.ScrollAll(ctx, batchSize)
			if err := writeRecords(cmd.OutOrStdout(), records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d records in %s\n", len(records), a.store.Collection())
			return nil
		}),
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per request (default from config)")
	return cmd
}

type jsonRecord struct {
	ID          string         `json:"id"`
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

func writeRecords(w io.Writer, records []vectorstore.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(jsonRecord{
			ID:          r.ID.String(),
			PageContent: r.PageContent,
			Metadata:    withoutContent(r.Metadata),
		}); err != nil {
			return fmt.Errorf("writing record %s: %w", r.ID, err)
		}
	}
	return nil
}
