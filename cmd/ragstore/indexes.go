package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragstore/internal/vectorstore"
)

func newIndexesCmd(global *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "Create the payload indexes used by filters",
		Long: `Create a payload index for every field in the index table. Indexes
that already exist are left alone, so the command is safe to re-run.

The table defaults to the common identifier fields and can be replaced with
vectorstore.payload_indexes in the config file.`,
		Args: cobra.NoArgs,
		RunE: run(global, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			out := cmd.OutOrStdout()
			if err := printIndexTable(out, a.store.PayloadIndexes()); err != nil {
				return err
			}
			if dryRun {
				return nil
			}
			if !a.store.Connected() {
				color.New(color.FgYellow).Fprintf(out, "vector store unavailable: %v\n", a.store.Diagnostic())
				return nil
			}
			a.store.EnsurePayloadIndexes(ctx)
			color.New(color.FgGreen).Fprintf(out, "Payload indexes ensured on %s\n", a.store.Collection())
			return nil
		}),
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the index table without contacting the backend")
	return cmd
}

func printIndexTable(w io.Writer, indexes []vectorstore.PayloadIndex) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tTYPE")
	for _, idx := range indexes {
		fmt.Fprintf(tw, "%s\t%s\n", idx.Field, idx.Kind)
	}
	return tw.Flush()
}
