package service

import (
	"context"
	"testing"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_LookupPrefersCache(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)

	product, err := env.catalog.Lookup(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "Ring", product.Title)
	assert.Empty(t, env.store.Calls())
}

func TestCatalogService_LookupFetchesAndCaches(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.store.products["P1"] = remoteProduct("P1", "Ring", 100)
	ctx := context.Background()

	_, err := env.catalog.Lookup(ctx, "P1")
	require.NoError(t, err)
	_, err = env.catalog.Lookup(ctx, "P1")
	require.NoError(t, err)

	assert.Equal(t, []string{"FetchProduct:P1"}, env.store.Calls())

	_, err = env.catalog.Lookup(ctx, "P404")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_ResolveFetchesOnce(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.store.products["P1"] = remoteProduct("P1", "Ring", 100)
	env.store.products["P2"] = remoteProduct("P2", "Chain", 50)

	products, err := env.catalog.Resolve(context.Background(), []string{"P2", "missing", "P1"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P2", products[0].ID)
	assert.Equal(t, "P1", products[1].ID)
	assert.Equal(t, []string{"FetchProducts"}, env.store.Calls())

	cached, err := env.catalog.List()
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestCatalogService_ResolveOffline(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	env.store.fail("FetchProducts", networkDown())

	products, err := env.catalog.Resolve(context.Background(), []string{"P1", "P2"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "P1", products[0].ID)
}

func TestCatalogService_Import(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})

	n, err := env.catalog.Import([]model.Product{
		{ID: "P1", Title: "Ring", Price: decimal.NewFromInt(100), Quantity: 3},
		{ID: "P2", Title: "Chain", Price: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := env.catalog.Cached("P2")
	assert.True(t, ok)
}

func TestCatalogService_ImportRejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name    string
		product model.Product
	}{
		{name: "missing id", product: model.Product{Title: "Ring"}},
		{name: "missing title", product: model.Product{ID: "P1"}},
		{name: "negative price", product: model.Product{ID: "P1", Title: "Ring", Price: decimal.NewFromInt(-1)}},
		{name: "negative stock", product: model.Product{ID: "P1", Title: "Ring", Quantity: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServiceTest(t, LocalAdmin{})

			_, err := env.catalog.Import([]model.Product{tt.product})
			assert.ErrorIs(t, err, ErrInvalidProduct)

			products, err := env.catalog.List()
			require.NoError(t, err)
			assert.Empty(t, products)
		})
	}
}
