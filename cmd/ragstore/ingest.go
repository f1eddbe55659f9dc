package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/vectorstore"
)

const (
	defaultIngestBatch = 64
	maxLineSize        = 16 * 1024 * 1024
)

type ingestOptions struct {
	batchSize  int
	noProgress bool
	indexes    bool
}

func newIngestCmd(global *globalOptions) *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [file|glob|-]...",
		Short: "Add chunks to the collection",
		Long: `Add chunks to the collection, creating it on first use.

Files ending in .jsonl or .ndjson, and stdin ("-"), hold one JSON object per
line: {"id": "...", "text": "...", "metadata": {...}}. id and metadata are
optional; ids may be strings or unsigned integers. Any other file is added
as a single chunk with its path as source.

Arguments may be doublestar globs, e.g. "docs/**/*.md".

Examples:
  ragstore ingest chunks.jsonl
  ragstore ingest "notes/**/*.md"
  cat chunks.jsonl | ragstore ingest -`,
		Args: cobra.MinimumNArgs(1),
		RunE: run(global, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}

			var chunks []vectorstore.Chunk
			for _, in := range inputs {
				c, err := readInput(in, cmd.InOrStdin())
				if err != nil {
					return err
				}
				chunks = append(chunks, c...)
			}
			if len(chunks) == 0 {
				return fmt.Errorf("no chunks found in %s", strings.Join(args, ", "))
			}

			var bar *progressbar.ProgressBar
			if !opts.noProgress {
				bar = newProgressBar(cmd.ErrOrStderr(), len(chunks))
			}

			added, failed := ingestBatches(ctx, a.store, chunks, opts.batchSize, bar)
			a.logger.Info(ctx, "ingest finished",
				zap.Int("chunks", len(chunks)),
				zap.Int("added", added),
				zap.Int("failed", failed),
			)
			if opts.indexes && added > 0 {
				a.store.EnsurePayloadIndexes(ctx)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "Added %d of %d chunks to %s\n", added, len(chunks), a.store.Collection())
			if failed > 0 {
				color.New(color.FgYellow).Fprintf(out, "%d chunks were not stored; see the log for details\n", failed)
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.IntVar(&opts.batchSize, "batch-size", defaultIngestBatch, "chunks per embedding and upsert call")
	f.BoolVar(&opts.noProgress, "no-progress", false, "do not show a progress bar")
	f.BoolVar(&opts.indexes, "ensure-indexes", false, "create the payload indexes after ingesting")
	return cmd
}

// ingestBatches adds chunks batchSize at a time. A batch that comes back
// empty counts as failed; the next batch is still tried.
func ingestBatches(ctx context.Context, store *vectorstore.Store, chunks []vectorstore.Chunk, batchSize int, bar *progressbar.ProgressBar) (added, failed int) {
	if batchSize <= 0 {
		batchSize = defaultIngestBatch
	}
	for start := 0; start < len(chunks); start += batchSize {
		if ctx.Err() != nil {
			failed += len(chunks) - start
			break
		}
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		ids, err := store.Add(ctx, batch)
		if err == nil && len(ids) == len(batch) {
			added += len(ids)
		} else {
			failed += len(batch)
		}
		if bar != nil {
			_ = bar.Add(len(batch))
		}
	}
	return added, failed
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// expandInputs resolves globs. Plain paths and "-" pass through unchanged so
// a missing file is reported when it is opened.
func expandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if arg == "-" || !hasMeta(arg) {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matched no files", arg)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func readInput(path string, stdin io.Reader) ([]vectorstore.Chunk, error) {
	if path == "-" {
		chunks, err := readJSONL(stdin)
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return chunks, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		chunks, err := readJSONL(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return chunks, nil
	default:
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(bytes.TrimSpace(content)) == 0 {
			return nil, nil
		}
		return []vectorstore.Chunk{{
			Text: string(content),
			Metadata: vectorstore.Metadata{
				"source": path,
				"ext":    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			},
		}}, nil
	}
}

type jsonChunk struct {
	ID       json.RawMessage `json:"id"`
	Text     string          `json:"text"`
	Metadata map[string]any  `json:"metadata"`
}

// readJSONL parses one chunk per non-blank line. Numbers in metadata keep
// their integer type when they have no fraction.
func readJSONL(r io.Reader) ([]vectorstore.Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var chunks []vectorstore.Chunk
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var jc jsonChunk
		if err := dec.Decode(&jc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(jc.Text) == "" {
			return nil, fmt.Errorf("line %d: text is required", line)
		}
		id, err := parseID(jc.ID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		chunks = append(chunks, vectorstore.Chunk{
			ID:       id,
			Text:     jc.Text,
			Metadata: normalizeNumbers(jc.Metadata),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func parseID(raw json.RawMessage) (vectorstore.PointID, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return vectorstore.PointID{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return vectorstore.PointID{}, fmt.Errorf("invalid id: %w", err)
	}
	switch id := v.(type) {
	case string:
		if id == "" {
			return vectorstore.PointID{}, nil
		}
		return vectorstore.StringID(id), nil
	case json.Number:
		var n uint64
		if _, err := fmt.Sscan(id.String(), &n); err != nil || id.String() != fmt.Sprint(n) {
			return vectorstore.PointID{}, fmt.Errorf("invalid id %s: numeric ids must be unsigned integers", id)
		}
		return vectorstore.NumericID(n), nil
	default:
		return vectorstore.PointID{}, fmt.Errorf("invalid id %s: must be a string or an unsigned integer", raw)
	}
}

// normalizeNumbers converts json.Number values to int64 or float64.
func normalizeNumbers(m map[string]any) vectorstore.Metadata {
	if m == nil {
		return nil
	}
	out := make(vectorstore.Metadata, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		return map[string]any(normalizeNumbers(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
