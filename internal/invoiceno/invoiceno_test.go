package invoiceno

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 9, 11, 30, 0, 0, time.UTC)

func TestNextFormatsAndStartsAtOne(t *testing.T) {
	no, err := Next(day, time.UTC, nil)
	require.NoError(t, err)
	assert.Equal(t, "INV-260309-0001", no)
}

func TestNextIgnoresOtherDaysAndGarbage(t *testing.T) {
	existing := []string{"INV-260308-0042", "INV-260309-0007", "INV-260309-0003", "junk", "INV-260309-99999"}
	no, err := Next(day, time.UTC, existing)
	require.NoError(t, err)
	assert.Equal(t, "INV-260309-0008", no)
}

func TestNextUsesShopLocationForDate(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC) // already 10 March in IST
	no, err := Next(late, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, "INV-260310-0001", no)
}

func TestNextExhausted(t *testing.T) {
	_, err := Next(day, time.UTC, []string{"INV-260309-9999"})
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestNumbererIsCollisionFreeUpToMax(t *testing.T) {
	n := NewNumberer(NewMemoryCounter(), time.UTC)
	seen := make(map[string]struct{}, MaxSequence)
	last := ""
	for i := 0; i < MaxSequence; i++ {
		no, err := n.Next(context.Background(), day, nil)
		require.NoError(t, err)
		_, dup := seen[no]
		require.False(t, dup, "duplicate %s", no)
		seen[no] = struct{}{}
		last = no
	}
	assert.Equal(t, "INV-260309-9999", last)

	_, err := n.Next(context.Background(), day, nil)
	assert.ErrorIs(t, err, ErrSequenceExhausted)

	_, err = Next(day, time.UTC, []string{last})
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestParse(t *testing.T) {
	key, seq, ok := Parse("INV-260309-0042")
	require.True(t, ok)
	assert.Equal(t, "260309", key)
	assert.Equal(t, 42, seq)

	for _, bad := range []string{"", "INV-260309", "INV-261309-0001", "XYZ-260309-0001", "INV-260309-0000", "INV-260309-00a1"} {
		_, _, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}

func TestNumbererConcurrentIssueIsUnique(t *testing.T) {
	n := NewNumberer(NewMemoryCounter(), time.UTC)
	const workers = 16
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				no, err := n.Next(context.Background(), day, nil)
				if err != nil {
					t.Errorf("next: %v", err)
					return
				}
				mu.Lock()
				seen[no] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNumbererSkipsPastExistingNumbers(t *testing.T) {
	n := NewNumberer(NewMemoryCounter(), time.UTC)
	no, err := n.Next(context.Background(), day, []string{"INV-260309-0005"})
	require.NoError(t, err)
	assert.Equal(t, "INV-260309-0006", no)
}

type failingCounter struct{}

func (failingCounter) NextInvoiceSequence(context.Context, string) (int64, error) {
	return 0, errors.New("counter down")
}

func TestNumbererPropagatesCounterError(t *testing.T) {
	n := NewNumberer(failingCounter{}, time.UTC)
	_, err := n.Next(context.Background(), day, nil)
	assert.Error(t, err)
}

type fixedCounter int64

func (c fixedCounter) NextInvoiceSequence(context.Context, string) (int64, error) {
	return int64(c), nil
}

func TestNumbererExhausted(t *testing.T) {
	n := NewNumberer(fixedCounter(MaxSequence+1), time.UTC)
	_, err := n.Next(context.Background(), day, nil)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}
