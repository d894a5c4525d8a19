package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func networkDown() error {
	return fmt.Errorf("failed: %w: dial tcp: connection refused", storeapi.ErrNetworkUnreachable)
}

func TestCartService_AddWhileOffline(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	env.cacheProduct(t, "P1", "Ring", 100)
	env.store.failAll(networkDown())

	err := env.cart.Add(context.Background(), "P1", 1)
	require.NoError(t, err)

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "P1", lines[0].ProductID())
	assert.Equal(t, 1, lines[0].Count)
	assert.True(t, env.session.IsAuthenticated())
	assert.Equal(t, []string{"AddCartItem:P1"}, env.store.Calls())
}

func TestCartService_AddAnonymousStaysLocal(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)

	require.NoError(t, env.cart.Add(context.Background(), "P1", 2))

	count, err := env.cart.Quantity()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Empty(t, env.store.Calls())
	assert.Equal(t, 1, env.topics.Count(events.CartChanged))
}

func TestCartService_AddIncrementsExistingLine(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()

	require.NoError(t, env.cart.Add(ctx, "P1", 1))
	require.NoError(t, env.cart.Add(ctx, "P1", 2))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Count)
	assert.Equal(t, []string{
		"AddCartItem:P1",
		"AddCartItem:P1",
		"UpdateCartItem:P1:3",
	}, env.store.Calls())
}

func TestCartService_AddRejectsInvalidQuantity(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)

	for _, quantity := range []int{0, -1} {
		err := env.cart.Add(context.Background(), "P1", quantity)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.ErrorIs(t, env.cart.Add(context.Background(), "", 1), ErrInvalidProductID)

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Zero(t, env.topics.Count(events.CartChanged))
	assert.Empty(t, env.store.Calls())
}

func TestCartService_AddResolvesPlaceholder(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.store.products["P1"] = remoteProduct("P1", "Ring", 120)

	require.NoError(t, env.cart.Add(context.Background(), "P1", 1))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Ring", lines[0].Product.Title)
	assert.True(t, decimal.NewFromInt(120).Equal(lines[0].Price))
	// one signal for the add, one for the resolved snapshot
	assert.Equal(t, 2, env.topics.Count(events.CartChanged))

	_, cached := env.catalog.Cached("P1")
	assert.True(t, cached)
}

func TestCartService_AddUnresolvableKeepsPlaceholder(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})

	require.NoError(t, env.cart.Add(context.Background(), "P404", 1))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Product.IsPlaceholder())
	assert.True(t, lines[0].Price.IsZero())
	assert.Equal(t, 1, env.topics.Count(events.CartChanged))
}

func TestCartService_UpdateQuantity(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 2))
	env.signIn(t)
	env.topics.Reset()

	require.NoError(t, env.cart.UpdateQuantity(ctx, "P1", 5))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Count)
	assert.Equal(t, 1, env.topics.Count(events.CartChanged))
	assert.Equal(t, []string{"UpdateCartItem:P1:5"}, env.store.Calls())
}

func TestCartService_UpdateQuantityUnchanged(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 2))
	env.signIn(t)
	env.topics.Reset()

	require.NoError(t, env.cart.UpdateQuantity(ctx, "P1", 2))
	assert.Zero(t, env.topics.Count(events.CartChanged))
	assert.Empty(t, env.store.Calls())
}

func TestCartService_UpdateQuantityErrors(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 2))
	env.topics.Reset()

	assert.ErrorIs(t, env.cart.UpdateQuantity(ctx, "P1", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, env.cart.UpdateQuantity(ctx, "P1", -3), ErrInvalidQuantity)
	assert.ErrorIs(t, env.cart.UpdateQuantity(ctx, "P2", 1), ErrCartLineNotFound)

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	assert.Equal(t, 2, lines[0].Count)
	assert.Zero(t, env.topics.Count(events.CartChanged))
}

func TestCartService_UnauthorizedInvalidatesSession(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	env.cacheProduct(t, "P1", "Ring", 100)
	env.store.fail("AddCartItem", fmt.Errorf("failed to add cart item: %w", storeapi.ErrUnauthorized))

	err := env.cart.Add(context.Background(), "P1", 1)
	assert.ErrorIs(t, err, ErrSessionExpired)

	assert.False(t, env.session.IsAuthenticated())
	assert.Nil(t, env.session.Current())
	assert.Equal(t, 1, env.topics.Count(events.SessionChanged))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "P1", lines[0].ProductID())
}

func TestCartService_Remove(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	env.cacheProduct(t, "P2", "Chain", 50)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 1))
	require.NoError(t, env.cart.Add(ctx, "P2", 1))
	env.signIn(t)
	env.topics.Reset()

	require.NoError(t, env.cart.Remove(ctx, "P1"))
	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "P2", lines[0].ProductID())

	// absent product is a no-op
	require.NoError(t, env.cart.Remove(ctx, "P1"))
	assert.Equal(t, 1, env.topics.Count(events.CartChanged))
	assert.Equal(t, []string{"RemoveCartItem:P1"}, env.store.Calls())
}

func TestCartService_ClearWhileServerFails(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 3))
	env.signIn(t)
	env.store.fail("ClearCart", fmt.Errorf("failed to clear cart: %w", storeapi.ErrServerError))

	require.NoError(t, env.cart.Clear(ctx))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.True(t, env.session.IsAuthenticated())
}

func TestCartService_Total(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	env.cacheProduct(t, "P2", "Chain", 25)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 2))
	require.NoError(t, env.cart.Add(ctx, "P2", 3))

	total, err := env.cart.Total()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(275).Equal(total), total.String())

	count, err := env.cart.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCartService_LocalSessionSkipsRemote(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	require.NoError(t, env.sessions.Save(&model.Session{
		Token: "local-token",
		User:  &model.UserSnapshot{ID: "local-admin", Email: "admin@example.com", Role: model.RoleAdmin},
		Local: true,
	}))

	require.NoError(t, env.cart.Add(context.Background(), "P1", 1))
	assert.Empty(t, env.store.Calls())
}

func TestCartService_CountMatchesDistinctProducts(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	ctx := context.Background()
	products := []string{"P1", "P2", "P3", "P4"}
	for _, id := range products {
		env.cacheProduct(t, id, "Product "+id, 10)
	}

	rng := rand.New(rand.NewSource(42))
	present := map[string]bool{}
	for i := 0; i < 60; i++ {
		if rng.Intn(2) == 0 {
			env.store.failAll(networkDown())
		} else {
			env.store.failAll(nil)
		}

		id := products[rng.Intn(len(products))]
		switch rng.Intn(3) {
		case 0:
			require.NoError(t, env.cart.Add(ctx, id, 1+rng.Intn(3)))
			present[id] = true
		case 1:
			require.NoError(t, env.cart.Remove(ctx, id))
			delete(present, id)
		case 2:
			err := env.cart.UpdateQuantity(ctx, id, 1+rng.Intn(5))
			if present[id] {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrCartLineNotFound)
			}
		}

		count, err := env.cart.Count()
		require.NoError(t, err)
		require.Equal(t, len(present), count, "step %d", i)
	}
}

func TestCartService_ConcurrentAddsAreSerialized(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.cart.Add(context.Background(), "P1", 1))
		}()
	}
	wg.Wait()

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 20, lines[0].Count)
}

func TestCartService_RefreshMergesServerFields(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 2))
	env.signIn(t)
	env.topics.Reset()

	env.store.cart = []storeapi.CartItem{
		{ID: "s1", Product: remoteProduct("P1", "Gold Ring", 90), Count: 7, Price: decimal.NewFromInt(90)},
		{ID: "s2", Product: remoteProduct("P2", "Chain", 50), Count: 1, Price: decimal.NewFromInt(50)},
	}

	require.NoError(t, env.cart.Refresh(ctx))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Gold Ring", lines[0].Product.Title)
	assert.True(t, decimal.NewFromInt(90).Equal(lines[0].Price))
	// local quantity is the working copy
	assert.Equal(t, 2, lines[0].Count)
	assert.Equal(t, 1, env.topics.Count(events.CartChanged))

	// nothing left to merge
	require.NoError(t, env.cart.Refresh(ctx))
	assert.Equal(t, 1, env.topics.Count(events.CartChanged))
}

func TestCartService_RefreshAdoptsRemoteWhenEmpty(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	env.store.cart = []storeapi.CartItem{
		{ID: "s1", Product: remoteProduct("P1", "Ring", 100), Count: 2, Price: decimal.NewFromInt(100)},
		{ID: "bad", Product: remoteProduct("", "", 0), Count: 1},
	}

	require.NoError(t, env.cart.Refresh(context.Background()))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "s1", lines[0].ID)
	assert.Equal(t, 2, lines[0].Count)
	_, cached := env.catalog.Cached("P1")
	assert.True(t, cached)
}

func TestCartService_RefreshWithoutSession(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})

	require.NoError(t, env.cart.Refresh(context.Background()))
	assert.Empty(t, env.store.Calls())
}

func TestCartService_RefreshFailures(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 1))
	env.signIn(t)

	env.store.fail("FetchCart", networkDown())
	require.NoError(t, env.cart.Refresh(ctx))

	env.store.fail("FetchCart", fmt.Errorf("failed to fetch cart: %w", storeapi.ErrUnauthorized))
	assert.ErrorIs(t, env.cart.Refresh(ctx), ErrSessionExpired)
	assert.False(t, env.session.IsAuthenticated())

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestMergeCart_NeverRemovesLocalLines(t *testing.T) {
	local := []model.CartLine{
		{ID: "a", Product: model.ProductSnapshot{ID: "P1", Title: "Ring"}, Count: 1, Price: decimal.NewFromInt(10)},
		{ID: "b", Product: model.ProductSnapshot{ID: "P2", Title: "Chain"}, Count: 1, Price: decimal.NewFromInt(20)},
	}

	merged, changed, err := mergeCart(local, nil, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, merged, 2)
}

func TestMergeCart_StoredEmptyCartIsKept(t *testing.T) {
	remote := []model.CartLine{
		{ID: "s1", Product: model.ProductSnapshot{ID: "P1", Title: "Ring"}, Count: 1, Price: decimal.NewFromInt(10)},
	}

	merged, changed, err := mergeCart([]model.CartLine{}, remote, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, merged)

	merged, changed, err = mergeCart([]model.CartLine{}, remote, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, merged, 1)
}

func TestCartService_RefreshKeepsClearedCart(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	env.cacheProduct(t, "P1", "Ring", 100)
	ctx := context.Background()
	require.NoError(t, env.cart.Add(ctx, "P1", 2))

	env.store.fail("ClearCart", fmt.Errorf("failed to clear cart: %w: status 500", storeapi.ErrServerError))
	require.NoError(t, env.cart.Clear(ctx))

	// the server still holds the line the user cleared
	env.store.cart = []storeapi.CartItem{
		{ID: "s1", Product: remoteProduct("P1", "Ring", 100), Count: 2, Price: decimal.NewFromInt(100)},
	}
	env.topics.Reset()
	require.NoError(t, env.cart.Refresh(ctx))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 0, env.topics.Count(events.CartChanged))
}

func TestCartService_RefreshFoldsDuplicateRemoteLines(t *testing.T) {
	env := setupServiceTest(t, LocalAdmin{})
	env.signIn(t)
	env.store.cart = []storeapi.CartItem{
		{ID: "s1", Product: remoteProduct("P1", "Ring", 100), Count: 1, Price: decimal.NewFromInt(100)},
		{ID: "s2", Product: remoteProduct("P1", "Ring", 100), Count: 2, Price: decimal.NewFromInt(100)},
		{ID: "s3", Product: remoteProduct("P2", "Chain", 50), Count: 1, Price: decimal.NewFromInt(50)},
	}

	require.NoError(t, env.cart.Refresh(context.Background()))

	lines, err := env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "P1", lines[0].ProductID())
	assert.Equal(t, "s1", lines[0].ID)
	assert.Equal(t, 3, lines[0].Count)
	assert.Equal(t, "P2", lines[1].ProductID())

	// later updates reach the single P1 line
	require.NoError(t, env.cart.UpdateQuantity(context.Background(), "P1", 5))
	lines, err = env.cart.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 5, lines[0].Count)
}
