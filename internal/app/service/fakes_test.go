package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/db"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeStore stands in for the storefront API. failWith, when set for an
// operation name, is returned instead of performing it.
type fakeStore struct {
	mu       sync.Mutex
	calls    []string
	failWith map[string]error
	cart     []storeapi.CartItem
	wishlist []string
	products map[string]storeapi.Product
	users    map[string]string // email -> password
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failWith: map[string]error{},
		products: map[string]storeapi.Product{},
		users:    map[string]string{},
	}
}

func (f *fakeStore) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith[op] = err
}

func (f *fakeStore) failAll(err error) {
	for _, op := range []string{
		"FetchCart", "AddCartItem", "UpdateCartItem", "RemoveCartItem", "ClearCart",
		"FetchWishlist", "AddWishlistItem", "RemoveWishlistItem",
	} {
		f.fail(op, err)
	}
}

func (f *fakeStore) record(call string, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failWith[op]
}

func (f *fakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) FetchCart(ctx context.Context, token string) ([]storeapi.CartItem, error) {
	if err := f.record("FetchCart", "FetchCart"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storeapi.CartItem(nil), f.cart...), nil
}

func (f *fakeStore) AddCartItem(ctx context.Context, productID, token string) error {
	return f.record("AddCartItem:"+productID, "AddCartItem")
}

func (f *fakeStore) UpdateCartItem(ctx context.Context, productID string, count int, token string) error {
	return f.record(fmt.Sprintf("UpdateCartItem:%s:%d", productID, count), "UpdateCartItem")
}

func (f *fakeStore) RemoveCartItem(ctx context.Context, productID, token string) error {
	return f.record("RemoveCartItem:"+productID, "RemoveCartItem")
}

func (f *fakeStore) ClearCart(ctx context.Context, token string) error {
	return f.record("ClearCart", "ClearCart")
}

func (f *fakeStore) FetchWishlist(ctx context.Context, token string) ([]string, error) {
	if err := f.record("FetchWishlist", "FetchWishlist"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.wishlist...), nil
}

func (f *fakeStore) AddWishlistItem(ctx context.Context, productID, token string) error {
	return f.record("AddWishlistItem:"+productID, "AddWishlistItem")
}

func (f *fakeStore) RemoveWishlistItem(ctx context.Context, productID, token string) error {
	return f.record("RemoveWishlistItem:"+productID, "RemoveWishlistItem")
}

func (f *fakeStore) FetchProduct(ctx context.Context, productID string) (*storeapi.Product, error) {
	if err := f.record("FetchProduct:"+productID, "FetchProduct"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, fmt.Errorf("failed to fetch product: %w", storeapi.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeStore) FetchProducts(ctx context.Context) ([]storeapi.Product, error) {
	if err := f.record("FetchProducts", "FetchProducts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	products := make([]storeapi.Product, 0, len(f.products))
	for _, p := range f.products {
		products = append(products, p)
	}
	return products, nil
}

func (f *fakeStore) SignIn(ctx context.Context, email, password string) (*storeapi.AuthResponse, error) {
	if err := f.record("SignIn:"+email, "SignIn"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[email]; !ok || pw != password {
		return nil, fmt.Errorf("failed to sign in: %w", storeapi.ErrUnauthorized)
	}
	return &storeapi.AuthResponse{
		User:  &storeapi.User{ID: "u-" + email, Name: "Kim", Email: email, Role: "user"},
		Token: "token-" + email,
	}, nil
}

func (f *fakeStore) SignUp(ctx context.Context, req storeapi.SignUpRequest) (*storeapi.AuthResponse, error) {
	if err := f.record("SignUp:"+req.Email, "SignUp"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[req.Email]; ok {
		return nil, fmt.Errorf("failed to sign up: %w", storeapi.ErrConflict)
	}
	f.users[req.Email] = req.Password
	return &storeapi.AuthResponse{
		User:  &storeapi.User{ID: "u-" + req.Email, Name: req.Name, Email: req.Email},
		Token: "token-" + req.Email,
	}, nil
}

// topicCounter counts deliveries per topic on a real bus.
type topicCounter struct {
	mu     sync.Mutex
	counts map[events.Topic]int
}

func countTopics(bus *events.Bus) *topicCounter {
	c := &topicCounter{counts: map[events.Topic]int{}}
	for _, topic := range events.Topics() {
		bus.Subscribe(topic, func(ctx context.Context, topic events.Topic) {
			c.mu.Lock()
			c.counts[topic]++
			c.mu.Unlock()
		})
	}
	return c
}

func (c *topicCounter) Count(topic events.Topic) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[topic]
}

func (c *topicCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = map[events.Topic]int{}
}

type testEnv struct {
	store    *fakeStore
	bus      *events.Bus
	topics   *topicCounter
	cache    repository.CacheRepository
	cartRepo repository.CartRepository
	sessions repository.SessionRepository
	products repository.ProductRepository
	catalog  CatalogService
	session  SessionService
	cart     CartService
	wishlist WishlistService
}

func setupServiceTest(t *testing.T, admin LocalAdmin) *testEnv {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	env := &testEnv{
		store: newFakeStore(),
		bus:   events.NewBus(),
		cache: repository.NewCacheRepository(testDB),
	}
	env.topics = countTopics(env.bus)
	env.cartRepo = repository.NewCartRepository(env.cache)
	env.sessions = repository.NewSessionRepository(env.cache)
	env.products = repository.NewProductRepository(env.cache)

	env.catalog = NewCatalogService(env.products, env.store, time.Second)
	env.session = NewSessionService(env.sessions, env.store, env.bus, admin, nil, time.Second)
	env.cart = NewCartService(env.cartRepo, env.catalog, env.store, env.session, env.bus, time.Second)
	env.wishlist = NewWishlistService(repository.NewWishlistRepository(env.cache), env.catalog, env.store, env.session, env.bus, time.Second)
	return env
}

func (env *testEnv) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, env.sessions.Save(&model.Session{
		Token:      "tok",
		User:       &model.UserSnapshot{ID: "u1", Name: "Kim", Email: "kim@example.com", Role: model.RoleUser},
		SignedInAt: time.Now(),
	}))
}

func (env *testEnv) cacheProduct(t *testing.T, id, title string, price int64) {
	t.Helper()
	require.NoError(t, env.products.Save(&model.Product{
		ID:    id,
		Title: title,
		Price: decimal.NewFromInt(price),
	}))
}

func remoteProduct(id, title string, price int64) storeapi.Product {
	return storeapi.Product{ID: id, Title: title, Price: decimal.NewFromInt(price)}
}
