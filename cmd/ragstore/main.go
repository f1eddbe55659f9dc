// Ragstore is a command-line client for a Qdrant-backed vector store.
//
// It ingests chunks, runs dense or hybrid similarity queries, scans whole
// collections and creates payload indexes. Configuration comes from
// ~/.config/ragstore/config.yaml, RAGSTORE_* environment variables (a .env
// file in the working directory is loaded first) and flags, in increasing
// order of precedence.
//
// Usage:
//
//	# Ingest JSON lines, one {"id", "text", "metadata"} object per line
//	ragstore ingest chunks.jsonl
//
//	# Ask a question against a hybrid collection
//	ragstore query --limit 3 "how much flour"
//
//	# Dump every record
//	ragstore scroll --batch-size 256 > dump.jsonl
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
