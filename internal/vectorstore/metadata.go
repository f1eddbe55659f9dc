package vectorstore

import (
	"time"
	"unicode/utf8"
)

// Derived metadata keys set on every ingested chunk unless the caller set them.
const (
	IngestedAtKey = "ingested_at"
	ChunkIDKey    = "chunk_id"
	DocIDKey      = "doc_id"
	ChunkIndexKey = "chunk_index"
	TextLengthKey = "text_length"
	SourceIDKey   = "source_id"
)

const ingestedAtLayout = "2006-01-02T15:04:05.000000Z"

// reconcile builds the payload for one chunk in a single pass: derived
// defaults first, the caller's map over them, then the content mirror.
// caller is never mutated.
func reconcile(text string, id PointID, caller Metadata, now time.Time) Metadata {
	defaults := Metadata{
		IngestedAtKey: now.UTC().Format(ingestedAtLayout),
		ChunkIDKey:    firstSet(caller, id.String(), "id", SourceIDKey),
		DocIDKey:      firstSet(caller, nil, "source", "doc_path"),
		ChunkIndexKey: firstSet(caller, 0, "page"),
		TextLengthKey: utf8.RuneCountInString(text),
	}

	out := make(Metadata, len(caller)+len(defaults)+2)
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range caller {
		out[k] = v
	}
	out[PageContentKey] = text
	out[DocumentKey] = text
	return out
}

// firstSet returns the first non-empty value among keys of m, or fallback.
func firstSet(m Metadata, fallback any, keys ...string) any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return fallback
}
