package utils

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatchKeepsOrder(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	pp := NewParallelProcessor(4)
	results, err := ProcessBatch(context.Background(), pp, items, func(i int, v int) int {
		return v * 2
	}, "doubling")
	require.NoError(t, err)
	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, i*2, r)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	results, err := ProcessBatch(context.Background(), NewParallelProcessor(0), []string{}, func(int, string) int {
		return 1
	}, "empty")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProcessBatch(ctx, NewParallelProcessor(2), []int{1, 2, 3}, func(_ int, v int) int {
		return v
	}, "cancelled")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressReporterWritesSpinnerLine(t *testing.T) {
	var buf bytes.Buffer
	pp := NewParallelProcessor(2)
	pp.Progress = &ProgressReporter{Out: &buf, Every: 1}

	_, err := ProcessBatch(context.Background(), pp, []int{1, 2, 3}, func(_ int, v int) int {
		return v
	}, "checking")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "checking: 3/3")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestNilTrackerIsSilent(t *testing.T) {
	var r *ProgressReporter
	tracker := r.Track(10, "nothing")
	assert.Nil(t, tracker)
	assert.NotPanics(t, func() {
		tracker.Increment()
		tracker.Finish()
	})
}

func TestTrackerProgress(t *testing.T) {
	r := &ProgressReporter{Every: 10}
	tracker := r.Track(4, "areas")
	tracker.Increment()

	done, total, pct := tracker.GetProgress()
	assert.EqualValues(t, 1, done)
	assert.EqualValues(t, 4, total)
	assert.InDelta(t, 25.0, pct, 1e-9)
}
