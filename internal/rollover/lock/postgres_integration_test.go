//go:build integration

package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/testutil/containers"
)

func TestPostgresLock(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	first := NewPostgres(pg.DB)
	second := NewPostgres(pg.DB)

	release, err := first.Acquire(ctx, "period-a")
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "period-a")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	other, err := second.Acquire(ctx, "period-b")
	require.NoError(t, err, "unrelated keys never contend")
	other()

	release()
	release()

	again, err := second.Acquire(ctx, "period-a")
	require.NoError(t, err)
	again()
}

func TestPostgresLockChainedWithKeyed(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	instanceA := Chain(NewKeyed(), NewPostgres(pg.DB))
	instanceB := Chain(NewKeyed(), NewPostgres(pg.DB))

	release, err := instanceA.Acquire(ctx, "period-a")
	require.NoError(t, err)

	_, err = instanceB.Acquire(ctx, "period-a")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	release()
	again, err := instanceB.Acquire(ctx, "period-a")
	require.NoError(t, err)
	again()
}
