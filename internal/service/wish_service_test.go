package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	desc := "for hiking"
	price := int64(12999)
	wish, err := env.wishSvc.Create(ctx, account.ID, WishInput{
		Title:       "  Trail backpack  ",
		Description: &desc,
		PriceCents:  &price,
	})
	require.NoError(t, err)
	assert.Equal(t, "Trail backpack", wish.Title)
	assert.False(t, wish.Fulfilled)

	got, err := env.wishSvc.Get(ctx, account.ID, wish.ID)
	require.NoError(t, err)
	assert.Equal(t, wish.ID, got.ID)
	require.NotNil(t, got.PriceCents)
	assert.Equal(t, price, *got.PriceCents)
}

func TestWishValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	_, err := env.wishSvc.Create(ctx, account.ID, WishInput{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	long := make([]byte, maxWishTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = env.wishSvc.Create(ctx, account.ID, WishInput{Title: string(long)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	negative := int64(-1)
	_, err = env.wishSvc.Create(ctx, account.ID, WishInput{Title: "ok", PriceCents: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWishOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "alice@example.com")
	bob := env.seedAccount(t, "bob", "bob@example.com")

	wish, err := env.wishSvc.Create(ctx, alice.ID, WishInput{Title: "Record player"})
	require.NoError(t, err)

	_, err = env.wishSvc.Get(ctx, bob.ID, wish.ID)
	assert.ErrorIs(t, err, ErrWishNotFound)

	_, err = env.wishSvc.Update(ctx, bob.ID, wish.ID, WishInput{Title: "Hijacked"})
	assert.ErrorIs(t, err, ErrWishNotFound)

	err = env.wishSvc.Delete(ctx, bob.ID, wish.ID)
	assert.ErrorIs(t, err, ErrWishNotFound)

	// Still intact for the owner.
	got, err := env.wishSvc.Get(ctx, alice.ID, wish.ID)
	require.NoError(t, err)
	assert.Equal(t, "Record player", got.Title)
}

func TestWishUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	wish, err := env.wishSvc.Create(ctx, account.ID, WishInput{Title: "Espresso machine"})
	require.NoError(t, err)

	updated, err := env.wishSvc.Update(ctx, account.ID, wish.ID, WishInput{Title: "Espresso machine", Fulfilled: true})
	require.NoError(t, err)
	assert.True(t, updated.Fulfilled)

	got, err := env.wishSvc.Get(ctx, account.ID, wish.ID)
	require.NoError(t, err)
	assert.True(t, got.Fulfilled)
}

func TestWishDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	wish, err := env.wishSvc.Create(ctx, account.ID, WishInput{Title: "Board game"})
	require.NoError(t, err)

	require.NoError(t, env.wishSvc.Delete(ctx, account.ID, wish.ID))

	_, err = env.wishSvc.Get(ctx, account.ID, wish.ID)
	assert.ErrorIs(t, err, ErrWishNotFound)

	err = env.wishSvc.Delete(ctx, account.ID, wish.ID)
	assert.ErrorIs(t, err, ErrWishNotFound)

	list, err := env.wishSvc.List(ctx, account.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
