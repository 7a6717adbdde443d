package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "library-circulation/internal/errors"
)

func TestReservations_Lifecycle(t *testing.T) {
	clk := newClock(2024, time.May, 10)
	lm := newManager(t, WithClock(clk.Now), WithReservationDays(7))
	ctx := context.Background()
	seedBook(t, lm, 1, "isbn", "Title", 1)
	seedMember(t, lm, 1, "a@example.com")
	seedMember(t, lm, 2, "b@example.com")

	rv, err := lm.Reservations.Create(ctx, 1, 1, 0)
	require.NoError(t, err)
	assert.True(t, rv.Active)
	assert.Equal(t, "2024-05-10", rv.CreatedAt.String())
	assert.Equal(t, "2024-05-17", rv.ExpiresAt.String())

	other, err := lm.Reservations.Create(ctx, 2, 1, 30)
	require.NoError(t, err)

	mine, err := lm.Reservations.GetMemberReservations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, rv.ID, mine[0].ID)

	c, err := lm.Ledger.GetCopy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, CopyAvailable, c.Status, "a hold does not pin a copy")

	clk.advance(8)
	n, err := lm.Reservations.ExpireReservations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := lm.Reservations.Get(ctx, rv.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	ok, err := lm.Reservations.Cancel(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = lm.Reservations.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	ok, err = lm.Reservations.Cancel(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := lm.Reservations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReservations_CreateChecks(t *testing.T) {
	lm := newManager(t)
	ctx := context.Background()
	seedBook(t, lm, 1, "isbn", "Title", 0)
	seedMember(t, lm, 1, "a@example.com")

	_, err := lm.Reservations.Create(ctx, 99, 1, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	_, err = lm.Reservations.Create(ctx, 1, 99, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	_, err = lm.Reservations.Create(ctx, 1, 1, -1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = lm.Reservations.Get(ctx, 1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
