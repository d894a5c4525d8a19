package repository

import (
	"testing"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLine(id, productID string, count int, price int64) model.CartLine {
	return model.CartLine{
		ID: id,
		Product: model.ProductSnapshot{
			ID:    productID,
			Title: "Product " + productID,
			Price: decimal.NewFromInt(price),
		},
		Count: count,
		Price: decimal.NewFromInt(price),
	}
}

func TestCartRepository_RoundTrip(t *testing.T) {
	for _, backend := range cacheBackends() {
		t.Run(backend.name, func(t *testing.T) {
			repo := NewCartRepository(backend.setup(t))

			lines := []model.CartLine{
				testLine("l2", "P2", 3, 1500),
				testLine("l1", "P1", 1, 990),
			}
			require.NoError(t, repo.Write(lines))

			got, err := repo.Read()
			require.NoError(t, err)
			require.Len(t, got, 2)
			for i := range lines {
				assert.Equal(t, lines[i].ID, got[i].ID)
				assert.Equal(t, lines[i].ProductID(), got[i].ProductID())
				assert.Equal(t, lines[i].Count, got[i].Count)
				assert.True(t, lines[i].Price.Equal(got[i].Price))
			}
		})
	}
}

func TestCartRepository_ReadMissing(t *testing.T) {
	repo := NewCartRepository(cacheBackends()[1].setup(t))

	lines, err := repo.Read()
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestCartRepository_WritesEnvelope(t *testing.T) {
	cache := cacheBackends()[0].setup(t)
	repo := NewCartRepository(cache)

	require.NoError(t, repo.Write(nil))

	raw, ok, err := cache.Get(model.CacheKeyCart)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":1,"items":[]}`, string(raw))
}

func TestCartRepository_ReadsLegacyArray(t *testing.T) {
	cache := cacheBackends()[1].setup(t)
	require.NoError(t, cache.Set(model.CacheKeyCart,
		[]byte(`[{"_id":"1700000000000","product":{"_id":"P1","title":"Ring","price":120},"count":2,"price":120}]`)))

	lines, err := NewCartRepository(cache).Read()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "P1", lines[0].ProductID())
	assert.Equal(t, 2, lines[0].Count)
	assert.True(t, decimal.NewFromInt(120).Equal(lines[0].Price))
}

func TestCartRepository_FailOpen(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "garbage", raw: `not json`},
		{name: "truncated", raw: `{"version":1,"items":[{"_id":`},
		{name: "future version", raw: `{"version":99,"items":[]}`},
		{name: "wrong item type", raw: `{"version":1,"items":"P1"}`},
		{name: "scalar", raw: `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := cacheBackends()[0].setup(t)
			require.NoError(t, cache.Set(model.CacheKeyCart, []byte(tt.raw)))

			lines, err := NewCartRepository(cache).Read()
			require.NoError(t, err)
			assert.Empty(t, lines)
		})
	}
}

func TestCartRepository_StoredAfterEmptyWrite(t *testing.T) {
	for _, backend := range cacheBackends() {
		t.Run(backend.name, func(t *testing.T) {
			repo := NewCartRepository(backend.setup(t))

			stored, err := repo.Stored()
			require.NoError(t, err)
			assert.False(t, stored)

			require.NoError(t, repo.Write([]model.CartLine{}))
			stored, err = repo.Stored()
			require.NoError(t, err)
			assert.True(t, stored)
		})
	}
}
