package vectorstore

import (
	"context"
	"fmt"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func seedN(t *testing.T, env *testEnv, n int) []PointID {
	t.Helper()
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}
	ids, err := env.store.AddTexts(context.Background(), texts, nil, nil)
	require.NoError(t, err)
	return ids
}

func TestScrollAll_EveryBatchSize(t *testing.T) {
	const total = 7
	env := newTestEnv(t, false)
	ids := seedN(t, env, total)

	for batch := 1; batch <= total+1; batch++ {
		t.Run(fmt.Sprintf("batch_%d", batch), func(t *testing.T) {
			env.client.scrolls = nil

			records := env.store.ScrollAll(context.Background(), batch)

			require.Len(t, records, total)
			seen := make(map[string]bool, total)
			for i, r := range records {
				assert.False(t, seen[r.ID.String()], "duplicate record %s", r.ID)
				seen[r.ID.String()] = true
				assert.Equal(t, ids[i], r.ID)
				assert.Equal(t, fmt.Sprintf("chunk number %d", i), r.PageContent)
				assert.Equal(t, r.PageContent, r.Metadata[PageContentKey])
			}

			wantCalls := (total + batch - 1) / batch
			assert.Len(t, env.client.scrolls, wantCalls)
			assert.True(t, env.client.scrolls[0].Cursor.IsZero(), "first page starts at the beginning")
			for _, req := range env.client.scrolls {
				assert.Equal(t, uint32(batch), req.Limit)
			}
			assert.Empty(t, env.client.unknownCursor, "only backend-issued cursors are sent")
		})
	}
}

func TestScrollAll_EmptyCollection(t *testing.T) {
	env := newTestEnv(t, false)

	records := env.store.ScrollAll(context.Background(), 10)

	assert.Empty(t, records)
	assert.Equal(t, 1, env.client.count("scroll"))
}

func TestScrollAll_BatchSizeDefaults(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		requested  int
		want       uint32
	}{
		{name: "requested size wins", configured: 50, requested: 3, want: 3},
		{name: "configured size when zero", configured: 50, requested: 0, want: 50},
		{name: "default when both unset", requested: -1, want: DefaultScrollBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			env.store.scrollBatch = tt.configured
			seedN(t, env, 2)

			env.store.ScrollAll(context.Background(), tt.requested)

			require.NotEmpty(t, env.client.scrolls)
			assert.Equal(t, tt.want, env.client.scrolls[0].Limit)
		})
	}
}

func TestScrollAll_PartialResultsOnFailure(t *testing.T) {
	env := newTestEnv(t, false)
	seedN(t, env, 6)
	env.client.scrollFailOn = 3
	before := counterValue(t, opScroll, resultPartial)

	records := env.store.ScrollAll(context.Background(), 2)

	assert.Len(t, records, 4)
	env.logs.AssertLogged(t, zapcore.ErrorLevel, "scroll failed")
	env.logs.AssertField(t, "scroll failed", "pages_read", int64(2))
	assert.Equal(t, before+1, counterValue(t, opScroll, resultPartial))
}

func TestScrollAll_FirstPageFails(t *testing.T) {
	env := newTestEnv(t, false)
	seedN(t, env, 3)
	env.client.errs["scroll"] = errBackend

	records := env.store.ScrollAll(context.Background(), 2)

	assert.Empty(t, records)
	env.logs.AssertLogged(t, zapcore.ErrorLevel, "scroll failed")
}

func TestScrollAll_StalledCursor(t *testing.T) {
	env := newTestEnv(t, false)
	seedN(t, env, 5)
	env.client.stall = true

	records := env.store.ScrollAll(context.Background(), 2)

	assert.Len(t, records, 2, "records before the stall are kept")
	assert.Len(t, env.client.scrolls, 2)
	env.logs.AssertLogged(t, zapcore.ErrorLevel, "scroll failed")
}

func TestScrollAll_CursorCycle(t *testing.T) {
	env := newTestEnv(t, false)
	ids := seedN(t, env, 6)
	env.client.rewindTo = ids[2].backend()
	before := counterValue(t, opScroll, resultPartial)

	records := env.store.ScrollAll(context.Background(), 2)

	require.Len(t, records, 4, "records before the repeated cursor are kept")
	assert.Equal(t, ids[3], records[3].ID)
	assert.Len(t, env.client.scrolls, 3)
	assert.Equal(t, before+1, counterValue(t, opScroll, resultPartial))
	env.logs.AssertLogged(t, zapcore.ErrorLevel, "scroll failed")
}

func TestScrollAll_MetricCountsRecords(t *testing.T) {
	env := newTestEnv(t, false)
	seedN(t, env, 4)
	before := scrolledTotal(t)

	env.store.ScrollAll(context.Background(), 3)

	assert.Equal(t, before+4, scrolledTotal(t))
}

func scrolledTotal(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, ScrolledRecords.Write(&m))
	return m.GetCounter().GetValue()
}
