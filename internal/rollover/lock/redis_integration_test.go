//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/testutil/containers"
)

func TestRedisLock(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	first := NewRedis(rc.Client, WithTTL(time.Minute))
	second := NewRedis(rc.Client, WithTTL(time.Minute), WithRetry(2, 10*time.Millisecond, 20*time.Millisecond))

	release, err := first.Acquire(ctx, "period-a")
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "period-a")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	other, err := second.Acquire(ctx, "period-b")
	require.NoError(t, err)
	other()

	release()
	again, err := second.Acquire(ctx, "period-a")
	require.NoError(t, err)
	again()
}
