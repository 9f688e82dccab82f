// Package invoiceno issues invoice numbers of the form INV-YYMMDD-NNNN.
package invoiceno

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	Prefix      = "INV"
	MaxSequence = 9999
	dateLayout  = "060102"
)

var ErrSequenceExhausted = errors.New("invoice sequence exhausted for the day")

// DateKey is the YYMMDD part of an invoice number for t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// DatePrefix is the shared prefix of every invoice number for dateKey.
func DatePrefix(dateKey string) string {
	return Prefix + "-" + dateKey + "-"
}

func Format(dateKey string, seq int) string {
	return fmt.Sprintf("%s%04d", DatePrefix(dateKey), seq)
}

// Parse splits an invoice number into its date key and sequence.
func Parse(invoiceNo string) (string, int, bool) {
	parts := strings.Split(strings.TrimSpace(invoiceNo), "-")
	if len(parts) != 3 || parts[0] != Prefix || len(parts[1]) != len(dateLayout) || len(parts[2]) != 4 {
		return "", 0, false
	}
	if _, err := time.Parse(dateLayout, parts[1]); err != nil {
		return "", 0, false
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 1 || seq > MaxSequence {
		return "", 0, false
	}
	return parts[1], seq, true
}

func highestSequence(dateKey string, existing []string) int {
	highest := 0
	for _, no := range existing {
		key, seq, ok := Parse(no)
		if !ok || key != dateKey {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return highest
}

// Next returns the next number for the date of now: one past the highest
// sequence already issued that day.
func Next(now time.Time, loc *time.Location, existing []string) (string, error) {
	key := DateKey(now, loc)
	seq := highestSequence(key, existing) + 1
	if seq > MaxSequence {
		return "", fmt.Errorf("%w: %s", ErrSequenceExhausted, key)
	}
	return Format(key, seq), nil
}

// Counter is a persisted monotonic counter keyed by date.
type Counter interface {
	NextInvoiceSequence(ctx context.Context, dateKey string) (int64, error)
}

// Numberer issues numbers from a Counter, skipping anything at or below the
// highest number already present in existing.
type Numberer struct {
	counter Counter
	loc     *time.Location
}

func NewNumberer(counter Counter, loc *time.Location) *Numberer {
	if counter == nil {
		counter = NewMemoryCounter()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Numberer{counter: counter, loc: loc}
}

func (n *Numberer) Next(ctx context.Context, now time.Time, existing []string) (string, error) {
	key := DateKey(now, n.loc)
	floor := int64(highestSequence(key, existing))
	if floor >= MaxSequence {
		return "", fmt.Errorf("%w: %s", ErrSequenceExhausted, key)
	}

	for {
		seq, err := n.counter.NextInvoiceSequence(ctx, key)
		if err != nil {
			return "", fmt.Errorf("next invoice sequence: %w", err)
		}
		if seq > MaxSequence {
			return "", fmt.Errorf("%w: %s", ErrSequenceExhausted, key)
		}
		if seq > floor {
			return Format(key, int(seq)), nil
		}
	}
}

type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) NextInvoiceSequence(_ context.Context, dateKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[dateKey]++
	return c.values[dateKey], nil
}
