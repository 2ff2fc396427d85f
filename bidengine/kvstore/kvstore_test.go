package kvstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
)

func Test_MemoryStore_MissingKeyIsNotAnError(t *testing.T) {
	store := kvstore.NewMemoryStore()

	value, found, err := store.Get(context.Background(), "absent")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func Test_MemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	require.NoError(t, store.Set(ctx, "snapshot", []byte(`{"a":1}`)))

	value, found, err := store.Get(ctx, "snapshot")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"a":1}`), value)

	require.NoError(t, store.Set(ctx, "snapshot", []byte(`{"a":2}`)))

	value, _, _ = store.Get(ctx, "snapshot")
	assert.Equal(t, []byte(`{"a":2}`), value)
}

func Test_MemoryStore_ValuesAreIsolatedFromCallerMutation(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	input := []byte("original")
	require.NoError(t, store.Set(ctx, "k", input))
	input[0] = 'X'

	stored, _, _ := store.Get(ctx, "k")
	assert.Equal(t, []byte("original"), stored)

	stored[0] = 'Y'

	again, _, _ := store.Get(ctx, "k")
	assert.Equal(t, []byte("original"), again)
}
