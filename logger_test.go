package vecgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgraph/distance"
)

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	return lines
}

func TestLoggerHelpers(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.LogInsert(ctx, 7, true, nil)
	l.LogBatchInsert(ctx, 10, 8, nil)
	l.LogSearch(ctx, 5, 64, 5, false, errors.New("boom"))
	l.LogRemove(ctx, 9, false)

	lines := decodeLogLines(t, &buf)
	require.Len(t, lines, 4)

	assert.Equal(t, "insert completed", lines[0]["msg"])
	assert.EqualValues(t, 7, lines[0]["id"])
	assert.Equal(t, true, lines[0]["inserted"])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.EqualValues(t, 10, lines[1]["count"])
	assert.EqualValues(t, 2, lines[1]["skipped"])

	assert.Equal(t, "search failed", lines[2]["msg"])
	assert.EqualValues(t, 5, lines[2]["k"])
	assert.Equal(t, "boom", lines[2]["error"])

	assert.EqualValues(t, 9, lines[3]["id"])
	assert.Equal(t, false, lines[3]["found"])
}

func TestIndexLogsCarryDimension(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ix := newTestIndex(t, 4, distance.MetricEuclidean, WithLogger(l))
	require.NoError(t, ix.Insert(ctx, 3, []float32{1, 2, 3, 4}))

	lines := decodeLogLines(t, &buf)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.EqualValues(t, 4, last["dimension"])
	assert.Equal(t, distance.MetricEuclidean.String(), last["metric"])
	assert.EqualValues(t, 3, last["id"])
}
