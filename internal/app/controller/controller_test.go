package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/db"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/internal/middleware"
	ws "github.com/ikkim/storefront-sync/internal/websocket"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// remoteStore is an in-process storefront API.
type remoteStore struct {
	mu           sync.Mutex
	requests     []string
	unauthorized bool
	failing      bool
	products     map[string]storeapi.Product
	users        map[string]string
}

func (s *remoteStore) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *remoteStore) set(fn func(s *remoteStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *remoteStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.URL.Path == "/auth/signin":
		var req storeapi.SignInRequest
		json.NewDecoder(r.Body).Decode(&req)
		if pw, ok := s.users[req.Email]; !ok || pw != req.Password {
			writeJSON(w, http.StatusUnauthorized, storeapi.ErrorResponse{Status: "fail", Message: "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, storeapi.AuthResponse{
			User:  &storeapi.User{ID: "u1", Name: "Kim", Email: req.Email, Role: "user"},
			Token: "remote-token",
		})

	case r.URL.Path == "/auth/signup":
		var req storeapi.SignUpRequest
		json.NewDecoder(r.Body).Decode(&req)
		if _, ok := s.users[req.Email]; ok {
			writeJSON(w, http.StatusConflict, storeapi.ErrorResponse{Status: "fail", Message: "email exists"})
			return
		}
		s.users[req.Email] = req.Password
		writeJSON(w, http.StatusCreated, storeapi.AuthResponse{
			User:  &storeapi.User{ID: "u2", Name: req.Name, Email: req.Email, Role: "user"},
			Token: "remote-token",
		})

	case r.URL.Path == "/products":
		products := make([]storeapi.Product, 0, len(s.products))
		for _, p := range s.products {
			products = append(products, p)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": products})

	case strings.HasPrefix(r.URL.Path, "/products/"):
		p, ok := s.products[strings.TrimPrefix(r.URL.Path, "/products/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, storeapi.ErrorResponse{Status: "fail", Message: "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": p})

	case s.unauthorized:
		writeJSON(w, http.StatusUnauthorized, storeapi.ErrorResponse{Status: "fail", Message: "token expired"})

	case s.failing:
		writeJSON(w, http.StatusInternalServerError, storeapi.ErrorResponse{Status: "error", Message: "boom"})

	case r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": []interface{}{}})

	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
	}
}

type testStack struct {
	router   *gin.Engine
	remote   *remoteStore
	bus      *events.Bus
	hub      *ws.Hub
	products repository.ProductRepository
	session  service.SessionService
}

func setupControllerTest(t *testing.T) *testStack {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	remote := &remoteStore{
		products: map[string]storeapi.Product{},
		users:    map[string]string{},
	}
	server := httptest.NewServer(remote)
	t.Cleanup(server.Close)

	client, err := storeapi.NewClient(storeapi.Config{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
	})
	require.NoError(t, err)

	cache := repository.NewCacheRepository(testDB)
	bus := events.NewBus()
	products := repository.NewProductRepository(cache)
	catalog := service.NewCatalogService(products, client, time.Second)
	session := service.NewSessionService(repository.NewSessionRepository(cache), client, bus, service.LocalAdmin{}, nil, time.Second)
	cart := service.NewCartService(repository.NewCartRepository(cache), catalog, client, session, bus, time.Second)
	wishlist := service.NewWishlistService(repository.NewWishlistRepository(cache), catalog, client, session, bus, time.Second)

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	detach := hub.Attach(bus)
	t.Cleanup(func() {
		detach()
		cancel()
		hub.Wait()
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	sessionMiddleware := middleware.NewSessionMiddleware(session)
	router.Use(middleware.LoggingMiddleware(), sessionMiddleware.Attach())

	authController := NewAuthController(session)
	cartController := NewCartController(cart)
	wishlistController := NewWishlistController(wishlist)
	productController := NewProductController(catalog)
	eventsController := NewEventsController(hub, []string{"http://localhost:3000"})

	v1 := router.Group("/api/v1")
	v1.POST("/auth/signin", authController.SignIn)
	v1.POST("/auth/signup", authController.SignUp)
	v1.POST("/auth/signout", authController.SignOut)
	v1.GET("/auth/me", sessionMiddleware.RequireSession(), authController.GetMe)
	v1.GET("/cart", cartController.GetCart)
	v1.POST("/cart", cartController.AddToCart)
	v1.DELETE("/cart", cartController.ClearCart)
	v1.POST("/cart/refresh", cartController.RefreshCart)
	v1.PUT("/cart/:product_id", cartController.UpdateCartItem)
	v1.DELETE("/cart/:product_id", cartController.RemoveFromCart)
	v1.GET("/wishlist", wishlistController.GetWishlist)
	v1.POST("/wishlist/refresh", wishlistController.RefreshWishlist)
	v1.POST("/wishlist/:product_id/toggle", wishlistController.ToggleWishlist)
	v1.GET("/products", productController.GetCachedProducts)
	v1.GET("/products/:id", productController.GetProductByID)
	v1.GET("/events", eventsController.Stream)

	return &testStack{
		router:   router,
		remote:   remote,
		bus:      bus,
		hub:      hub,
		products: products,
		session:  session,
	}
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testStack) signIn(t *testing.T) {
	t.Helper()
	s.remote.set(func(r *remoteStore) { r.users["kim@example.com"] = "secret1" })
	w := s.do(t, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email":    "kim@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *testStack) addRemoteProduct(id, title string, price int64) {
	s.remote.set(func(r *remoteStore) {
		r.products[id] = storeapi.Product{ID: id, Title: title, Price: decimal.NewFromInt(price)}
	})
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}
