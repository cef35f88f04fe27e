package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewInMemoryDirectory(
		User{ID: "U1", Name: "Ada", Active: false},
		User{ID: "U2", Name: "Grace", Active: true},
	)

	active, err := d.IsActive(ctx, "U2")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = d.IsActive(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, active)

	name, err := d.GetName(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	active, err = d.IsActive(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, active, "unknown users are inactive")

	d.Put(User{ID: "U1", Name: "Ada", Active: true})
	active, _ = d.IsActive(ctx, "U1")
	assert.True(t, active)
}
