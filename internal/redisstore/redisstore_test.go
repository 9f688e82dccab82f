package redisstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClientAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("GOLDPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set GOLDPOS_TEST_REDIS_ADDR to run redis integration tests")
	}
	return addr
}

func TestCounterIsMonotonicPerDate(t *testing.T) {
	client := NewClient(testClientAddr(t), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	dateKey := "it" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(ctx, sequenceKeyPrefix+dateKey) })

	counter := NewCounter(client)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{})
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := counter.NextInvoiceSequence(ctx, dateKey)
			assert.NoError(t, err)
			mu.Lock()
			seen[seq] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)

	ttl, err := client.TTL(ctx, sequenceKeyPrefix+dateKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestLockerSerializesSameDay(t *testing.T) {
	client := NewClient(testClientAddr(t), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	locker := NewLocker(client, time.Second, 100*time.Millisecond, nil)
	day := fmt.Sprintf("it-%d", time.Now().UnixNano())

	unlock, err := locker.Lock(ctx, day)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, day)
	assert.ErrorIs(t, err, ErrLockNotObtained)

	require.NoError(t, unlock(ctx))
	again, err := locker.Lock(ctx, day)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
	assert.NoError(t, again(ctx), "second release is a no-op")
}
