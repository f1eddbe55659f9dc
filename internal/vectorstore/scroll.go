package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
)

// DefaultScrollBatchSize is the page size used when none is configured.
const DefaultScrollBatchSize = 100

const opScroll = "scroll"

var errCursorRepeated = errors.New("backend returned a cursor already visited")

// ScrollAll reads every record of the collection, batchSize per request.
// A non-positive batchSize falls back to the configured size, then to
// DefaultScrollBatchSize.
//
// Pages are chained by the backend's cursor, never by counting, so writes
// between pages cannot shift records across page boundaries. The scan stops
// at an empty page or when the backend returns no next cursor. A failure
// mid-scan, including a cursor the scan already visited, is logged and the
// records read so far are returned.
func (s *Store) ScrollAll(ctx context.Context, batchSize int) []Record {
	client, ok := s.client(ctx, opScroll)
	if !ok {
		return nil
	}

	batchSize = s.scrollBatchSize(batchSize)
	ctx, op := s.startOp(ctx, opScroll, attribute.Int("batch_size", batchSize))

	var (
		records []Record
		cursor  qdrant.Cursor
		pages   int
		visited = make(map[string]bool)
	)
	for {
		if !cursor.IsZero() {
			visited[cursor.String()] = true
		}
		page, err := client.Scroll(ctx, &qdrant.ScrollRequest{
			Collection: s.collection,
			Limit:      uint32(batchSize),
			Cursor:     cursor,
		})
		if err == nil && !page.Next.IsZero() && visited[page.Next.String()] {
			err = fmt.Errorf("%w: %s", errCursorRepeated, page.Next)
		}
		if err != nil {
			s.logger.Error(ctx, "scroll failed, returning partial results",
				zap.Int("pages_read", pages),
				zap.Int("records", len(records)),
				zap.Stringer("cursor", cursor),
				zap.Bool("transient", qdrant.IsTransient(err)),
				zap.Error(err),
			)
			ScrolledRecords.Add(float64(len(records)))
			result := resultError
			if len(records) > 0 {
				result = resultPartial
			}
			op.span.SetAttributes(attribute.Int("records", len(records)))
			op.fail(result, err)
			return records
		}
		pages++

		if len(page.Points) == 0 {
			break
		}
		for _, p := range page.Points {
			records = append(records, Record{
				ID:          pointIDFromBackend(p.ID),
				PageContent: resolveContent(p.Payload),
				Metadata:    Metadata(p.Payload),
			})
		}
		if page.Next.IsZero() {
			break
		}
		cursor = page.Next
	}

	s.logger.Debug(ctx, "scroll complete",
		zap.Int("pages_read", pages),
		zap.Int("records", len(records)),
	)
	ScrolledRecords.Add(float64(len(records)))
	op.succeed(attribute.Int("pages", pages), attribute.Int("records", len(records)))
	return records
}

func (s *Store) scrollBatchSize(n int) int {
	if n <= 0 {
		n = s.scrollBatch
	}
	if n <= 0 {
		n = DefaultScrollBatchSize
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return n
}
