package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmationGate_Confirm(t *testing.T) {
	ctx := context.Background()
	g := NewConfirmationGate()

	ok, err := g.Confirm(ctx, "sure?", Answer(true))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Confirm(ctx, "sure?", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("terminal closed")
	_, err = g.Confirm(ctx, "sure?", ConfirmFunc(func(context.Context, string) (bool, error) {
		return false, boom
	}))
	require.ErrorIs(t, err, boom)
	assert.False(t, g.Pending(), "gate is released after an error")
}

func TestConfirmationGate_Nested(t *testing.T) {
	ctx := context.Background()
	g := NewConfirmationGate()

	var inner error
	ok, err := g.Confirm(ctx, "outer", ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
		assert.True(t, g.Pending())
		_, inner = g.Confirm(ctx, "inner", Answer(true))
		return true, nil
	}))
	require.NoError(t, err)
	assert.True(t, ok)
	require.ErrorIs(t, inner, ErrConfirmationPending)
}

func TestConfirmationGate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := NewConfirmationGate().Confirm(ctx, "sure?", ConfirmFunc(func(context.Context, string) (bool, error) {
		called = true
		return true, nil
	}))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestConfirmationGate_Require(t *testing.T) {
	g := NewConfirmationGate()
	require.ErrorIs(t, g.require(context.Background(), "sure?", Answer(false)), ErrConfirmationRequired)
	require.NoError(t, g.require(context.Background(), "sure?", Answer(true)))
}
