package service

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
)

var (
	ErrSessionExpired   = errors.New("session expired, please sign in again")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrCartLineNotFound = errors.New("product is not in the cart")
	ErrInvalidProductID = errors.New("product ID must not be empty")
)

const defaultSyncTimeout = 10 * time.Second

// RemoteCart is the cart half of the storefront API.
type RemoteCart interface {
	FetchCart(ctx context.Context, token string) ([]storeapi.CartItem, error)
	AddCartItem(ctx context.Context, productID, token string) error
	UpdateCartItem(ctx context.Context, productID string, count int, token string) error
	RemoveCartItem(ctx context.Context, productID, token string) error
	ClearCart(ctx context.Context, token string) error
}

type RemoteWishlist interface {
	FetchWishlist(ctx context.Context, token string) ([]string, error)
	AddWishlistItem(ctx context.Context, productID, token string) error
	RemoveWishlistItem(ctx context.Context, productID, token string) error
}

type RemoteAuth interface {
	SignIn(ctx context.Context, email, password string) (*storeapi.AuthResponse, error)
	SignUp(ctx context.Context, req storeapi.SignUpRequest) (*storeapi.AuthResponse, error)
}

type RemoteCatalog interface {
	FetchProduct(ctx context.Context, productID string) (*storeapi.Product, error)
	FetchProducts(ctx context.Context) ([]storeapi.Product, error)
}

// Publisher is the write side of the change bus.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic)
}

// SessionGate decides whether a mutation is mirrored to the remote store.
type SessionGate interface {
	// IsAuthenticated reports whether a token and identity are both stored.
	IsAuthenticated() bool
	// IsLikelyValid never contacts the remote store.
	IsLikelyValid() bool
	// SyncToken returns the token to sync with, or false when remote sync
	// must be skipped.
	SyncToken() (string, bool)
	// InvalidateToken clears the session only if it still holds token.
	InvalidateToken(ctx context.Context, token string) bool
}

// remoteSyncer runs best-effort remote calls behind the session gate.
type remoteSyncer struct {
	gate    SessionGate
	timeout time.Duration
}

func newRemoteSyncer(gate SessionGate, timeout time.Duration) remoteSyncer {
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	return remoteSyncer{gate: gate, timeout: timeout}
}

// run calls the remote operation when the gate allows it. Only a rejected
// session surfaces, as ErrSessionExpired; every other failure is logged and
// absorbed because the local write already happened.
func (s remoteSyncer) run(ctx context.Context, op string, fields map[string]interface{}, call func(ctx context.Context, token string) error) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["op"] = op

	token, ok := s.gate.SyncToken()
	if !ok {
		logger.Debug("Skipping remote sync without a usable session", fields)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := call(callCtx, token)
	cancel()

	switch {
	case err == nil:
		logger.Debug("Remote sync succeeded", fields)
		return nil
	case errors.Is(err, storeapi.ErrUnauthorized):
		logger.Warn("Remote store rejected session, signing out", fields)
		s.gate.InvalidateToken(ctx, token)
		return ErrSessionExpired
	case errors.Is(err, storeapi.ErrNotFound):
		fields["error"] = err.Error()
		logger.Info("Nothing to synchronize remotely", fields)
		return nil
	default:
		fields["error"] = err.Error()
		logger.Warn("Remote sync failed, keeping local state", fields)
		return nil
	}
}
