package foodstore

import (
	"context"
	"testing"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) GetByID(ctx context.Context, id int64) (domain.FoodItem, error) {
	c.gets++
	return c.MemoryStore.GetByID(ctx, id)
}

func TestCachedStoreMemoizesHits(t *testing.T) {
	inner := &countingStore{MemoryStore: NewMemoryStore(1, domain.FoodItem{ID: 1, Description: "Egg"})}
	cached, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		item, err := cached.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Egg", item.Description)
	}
	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, 1, cached.Len())

	_, err = cached.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = cached.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 3, inner.gets)
}
