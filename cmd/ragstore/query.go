package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
	"github.com/fyrsmithlabs/ragstore/internal/vectorstore"
)

const maxPreview = 500

type queryOptions struct {
	limit     int
	threshold float64
	where     []string
	jsonOut   bool
	loop      bool
}

func newQueryCmd(global *globalOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Search the collection by similarity",
		Long: `Search the collection for the chunks most similar to text.

With a sparse model configured the dense and sparse results are fused by
reciprocal rank; otherwise the search is dense only.

Examples:
  ragstore query "how much flour"
  ragstore query --limit 10 --threshold 0.4 --where lang=en "oven temperature"
  ragstore query --loop`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.loop {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: run(global, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			queryOpts, err := opts.storeOptions(cmd.Flags().Changed("threshold"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !opts.loop {
				results := a.store.Query(ctx, strings.Join(args, " "), opts.limit, queryOpts...)
				return printResults(out, results, opts.jsonOut)
			}

			return queryLoop(ctx, cmd.InOrStdin(), out, func(text string) error {
				results := a.store.Query(ctx, text, opts.limit, queryOpts...)
				return printResults(out, results, opts.jsonOut)
			})
		}),
	}

	f := cmd.Flags()
	f.IntVarP(&opts.limit, "limit", "k", vectorstore.DefaultQueryLimit, "maximum number of results")
	f.Float64Var(&opts.threshold, "threshold", 0, "drop results scoring below this value")
	f.StringArrayVar(&opts.where, "where", nil, "payload condition field=value; repeatable, all must match")
	f.BoolVar(&opts.jsonOut, "json", false, "print one JSON object per result")
	f.BoolVar(&opts.loop, "loop", false, "read queries from stdin, one per line")
	return cmd
}

// storeOptions turns the flags into query options. The threshold only
// applies when given explicitly, so 0 stays distinguishable from unset.
func (o *queryOptions) storeOptions(thresholdSet bool) ([]vectorstore.QueryOption, error) {
	var out []vectorstore.QueryOption
	if thresholdSet {
		out = append(out, vectorstore.WithScoreThreshold(float32(o.threshold)))
	}
	filter, err := parseWhere(o.where)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		out = append(out, vectorstore.WithFilter(filter))
	}
	return out, nil
}

// parseWhere builds a filter requiring every field=value condition.
func parseWhere(exprs []string) (*qdrant.Filter, error) {
	spec := &qdrant.FilterSpec{}
	for _, expr := range exprs {
		cond, err := qdrant.ParseCondition(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid --where: %w", err)
		}
		spec.Must = append(spec.Must, cond)
	}
	return spec.ToProto()
}

// queryLoop runs fn for every non-empty line of in until EOF, "exit" or
// cancellation.
func queryLoop(ctx context.Context, in io.Reader, out io.Writer, fn func(string) error) error {
	prompt := color.New(color.FgCyan, color.Bold)
	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(out, "query> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := fn(text); err != nil {
			return err
		}
	}
}

type jsonResult struct {
	ID          string         `json:"id"`
	Score       *float32       `json:"score,omitempty"`
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

func printResults(w io.Writer, results []vectorstore.QueryResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range results {
			if err := enc.Encode(jsonResult{
				ID:          r.ID.String(),
				Score:       r.Score,
				PageContent: r.PageContent,
				Metadata:    withoutContent(r.Metadata),
			}); err != nil {
				return err
			}
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	header := color.New(color.FgCyan)
	score := color.New(color.FgGreen)
	dim := color.New(color.Faint)
	for i, r := range results {
		header.Fprintf(w, "--- [%d] %s", i+1, r.ID)
		if r.Score != nil {
			score.Fprintf(w, " (score: %.4f)", *r.Score)
		}
		fmt.Fprintln(w, " ---")
		if meta := formatMetadata(r.Metadata); meta != "" {
			dim.Fprintln(w, meta)
		}
		fmt.Fprintln(w, preview(r.PageContent))
		fmt.Fprintln(w)
	}
	return nil
}

// withoutContent drops the content mirror keys already printed as page_content.
func withoutContent(m vectorstore.Metadata) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == vectorstore.PageContentKey || k == vectorstore.DocumentKey {
			continue
		}
		out[k] = v
	}
	return out
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(m vectorstore.Metadata) string {
	meta := withoutContent(m)
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= maxPreview {
		return text
	}
	return string(r[:maxPreview]) + "..."
}
