package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackesh4086/spr-price-check/internal/store"
)

func TestStoreRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStoreWithClock(time.Now)
	repo := NewStoreRepository(kv)

	_, found, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Save(ctx, SeedData()))

	loaded, found, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, SeedData(), loaded)
}
