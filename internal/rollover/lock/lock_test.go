package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esgledger/pkg/domain-errors"
)

func TestKeyedRejectsBusyKey(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	release, err := k.Acquire(ctx, "period-a")
	require.NoError(t, err)
	assert.True(t, k.Held("period-a"))

	_, err = k.Acquire(ctx, "period-a")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	other, err := k.Acquire(ctx, "period-b")
	require.NoError(t, err, "unrelated keys never contend")
	other()

	release()
	release()
	assert.False(t, k.Held("period-a"))

	again, err := k.Acquire(ctx, "period-a")
	require.NoError(t, err)
	again()
}

func TestKeyedWaitsForRelease(t *testing.T) {
	k := NewKeyed(WithWait(time.Second))
	ctx := context.Background()

	release, err := k.Acquire(ctx, "period-a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := k.Acquire(ctx, "period-a")
		if err == nil {
			r()
		}
		close(acquired)
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestKeyedWaitBoundedByContext(t *testing.T) {
	k := NewKeyed(WithWait(time.Minute))
	release, err := k.Acquire(context.Background(), "period-a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "period-a")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestKeyedSerializesHolders(t *testing.T) {
	k := NewKeyed(WithWait(5 * time.Second))
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "period-a")
			if err != nil {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
}

type recordingLocker struct {
	name string
	log  *[]string
	err  error
}

func (r recordingLocker) Acquire(context.Context, string) (func(), error) {
	if r.err != nil {
		return nil, r.err
	}
	*r.log = append(*r.log, "acquire "+r.name)
	return func() { *r.log = append(*r.log, "release "+r.name) }, nil
}

func TestChain(t *testing.T) {
	var log []string
	c := Chain(recordingLocker{name: "local", log: &log}, nil, recordingLocker{name: "redis", log: &log})

	release, err := c.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	assert.Equal(t, []string{"acquire local", "acquire redis", "release redis", "release local"}, log)

	log = nil
	busy := dErrors.New(dErrors.CodeConflict, "busy")
	c = Chain(recordingLocker{name: "local", log: &log}, recordingLocker{name: "redis", log: &log, err: busy})
	_, err = c.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, []string{"acquire local", "release local"}, log)
}
