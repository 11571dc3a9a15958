package services

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	// ErrConfirmationPending is returned while another confirmation is
	// outstanding. Requests are never queued.
	ErrConfirmationPending = errors.New("another confirmation is pending")
	// ErrConfirmationRequired is returned when the user did not confirm.
	ErrConfirmationRequired = errors.New("confirmation required")
)

// Confirmer asks the user to approve a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Answer is a Confirmer with a fixed reply, as decided by a request
// parameter.
type Answer bool

func (a Answer) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}

// ConfirmationGate allows at most one confirmation to be outstanding.
type ConfirmationGate struct {
	pending atomic.Bool
}

func NewConfirmationGate() *ConfirmationGate {
	return &ConfirmationGate{}
}

// Confirm asks c and reports its answer. A nil Confirmer never confirms.
func (g *ConfirmationGate) Confirm(ctx context.Context, prompt string, c Confirmer) (bool, error) {
	if !g.pending.CompareAndSwap(false, true) {
		return false, ErrConfirmationPending
	}
	defer g.pending.Store(false)

	if c == nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.Confirm(ctx, prompt)
}

// Pending reports whether a confirmation is outstanding.
func (g *ConfirmationGate) Pending() bool {
	return g.pending.Load()
}

// require runs the gate and turns a refusal into ErrConfirmationRequired.
func (g *ConfirmationGate) require(ctx context.Context, prompt string, c Confirmer) error {
	ok, err := g.Confirm(ctx, prompt, c)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConfirmationRequired
	}
	return nil
}
