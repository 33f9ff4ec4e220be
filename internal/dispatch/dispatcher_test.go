package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
)

func testConfig(workers int) config.DispatchConfig {
	return config.DispatchConfig{
		Workers:    workers,
		MaxWorkers: 8,
		MinDelay:   time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}
}

func countingVerify(counts map[string]int, mu *sync.Mutex) core.VerifyFunc {
	return func(ctx context.Context, email string) core.VerificationResult {
		mu.Lock()
		counts[email]++
		mu.Unlock()
		return core.NewResult(email, core.CategoryValid, "ok", "test", nil, time.Now())
	}
}

func TestBatchVerifyParallelOneResultPerAddress(t *testing.T) {
	d := NewDispatcher(testConfig(4), zap.NewNop())

	var mu sync.Mutex
	counts := make(map[string]int)

	emails := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		emails = append(emails, fmt.Sprintf("user%d@example.com", i))
	}

	results := d.BatchVerify(context.Background(), emails, countingVerify(counts, &mu))

	require.Len(t, results, 50)
	for _, email := range emails {
		assert.Contains(t, results, email)
		assert.Equal(t, 1, counts[email])
	}
}

func TestBatchVerifySequentialDelaysBetweenAddresses(t *testing.T) {
	d := NewDispatcher(testConfig(1), zap.NewNop())
	var slept []time.Duration
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }

	var mu sync.Mutex
	counts := make(map[string]int)
	emails := []string{"a@example.com", "b@example.com", "c@example.com"}

	results := d.BatchVerify(context.Background(), emails, countingVerify(counts, &mu))

	require.Len(t, results, 3)
	// One pause between each pair of consecutive addresses, none before the first.
	require.Len(t, slept, 2)
	for _, dur := range slept {
		assert.GreaterOrEqual(t, dur, time.Millisecond)
		assert.Less(t, dur, 2*time.Millisecond)
	}
}

func TestBatchVerifyDeduplicatesInput(t *testing.T) {
	d := NewDispatcher(testConfig(2), zap.NewNop())

	var mu sync.Mutex
	counts := make(map[string]int)

	results := d.BatchVerify(context.Background(),
		[]string{"a@example.com", "a@example.com", "b@example.com"},
		countingVerify(counts, &mu))

	require.Len(t, results, 2)
	assert.Equal(t, 1, counts["a@example.com"])
}

func TestBatchVerifyEmptyInput(t *testing.T) {
	d := NewDispatcher(testConfig(4), zap.NewNop())
	results := d.BatchVerify(context.Background(), nil, nil)
	assert.Empty(t, results)
}

func TestBatchVerifyWorkerPanicYieldsRisky(t *testing.T) {
	d := NewDispatcher(testConfig(4), zap.NewNop())

	verify := func(ctx context.Context, email string) core.VerificationResult {
		if email == "bad@example.com" {
			panic("probe blew up")
		}
		return core.NewResult(email, core.CategoryValid, "ok", "test", nil, time.Now())
	}

	results := d.BatchVerify(context.Background(),
		[]string{"a@example.com", "bad@example.com", "b@example.com"}, verify)

	require.Len(t, results, 3)
	assert.Equal(t, core.CategoryValid, results["a@example.com"].Category)
	assert.Equal(t, core.CategoryValid, results["b@example.com"].Category)
	assert.Equal(t, core.CategoryRisky, results["bad@example.com"].Category)
	assert.Contains(t, results["bad@example.com"].Reason, "probe blew up")
}

func TestWorkerCountSoftCapAndBatchBound(t *testing.T) {
	d := NewDispatcher(testConfig(64), zap.NewNop())
	// The configured maximum warns but never clamps.
	assert.Equal(t, 64, d.workerCount(100))
	// Workers beyond the batch size are pointless.
	assert.Equal(t, 5, d.workerCount(5))
}

func TestResultLineRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := core.NewResult("a@example.com", core.CategoryRisky, "catch-all", "custom",
		map[string]string{"smtp_code": "250"}, ts)

	back := FromResult(r).toResult()
	assert.Equal(t, r, back)
}

func TestResultLineUnknownCategoryDegradesToRisky(t *testing.T) {
	line := ResultLine{Email: "a@example.com", Category: "garbage"}
	assert.Equal(t, core.CategoryRisky, line.toResult().Category)
}
