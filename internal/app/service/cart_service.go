package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// CartService applies cart intents to the local cache first, announces them,
// then mirrors them to the remote store on a best-effort basis.
type CartService interface {
	Lines() ([]model.CartLine, error)
	Count() (int, error)
	Quantity() (int, error)
	Total() (decimal.Decimal, error)
	Add(ctx context.Context, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, productID string, count int) error
	Remove(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
	Refresh(ctx context.Context) error
}

type cartService struct {
	mu      sync.Mutex // serializes read-modify-write of the cart key
	repo    repository.CartRepository
	catalog CatalogService
	remote  RemoteCart
	bus     Publisher
	sync    remoteSyncer
	refresh singleflight.Group
}

func NewCartService(
	repo repository.CartRepository,
	catalog CatalogService,
	remote RemoteCart,
	gate SessionGate,
	bus Publisher,
	syncTimeout time.Duration,
) CartService {
	return &cartService{
		repo:    repo,
		catalog: catalog,
		remote:  remote,
		bus:     bus,
		sync:    newRemoteSyncer(gate, syncTimeout),
	}
}

func (s *cartService) Lines() ([]model.CartLine, error) {
	return s.repo.Read()
}

// Count is the number of distinct products in the cart.
func (s *cartService) Count() (int, error) {
	lines, err := s.repo.Read()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

func (s *cartService) Quantity() (int, error) {
	lines, err := s.repo.Read()
	if err != nil {
		return 0, err
	}
	return model.CartQuantity(lines), nil
}

func (s *cartService) Total() (decimal.Decimal, error) {
	lines, err := s.repo.Read()
	if err != nil {
		return decimal.Zero, err
	}
	return model.CartTotal(lines), nil
}

// mutate applies fn to the stored lines under the cart lock and writes the
// result when fn reports a change.
func (s *cartService) mutate(fn func(lines []model.CartLine) ([]model.CartLine, bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.repo.Read()
	if err != nil {
		return false, err
	}
	next, changed, err := fn(lines)
	if err != nil || !changed {
		return false, err
	}
	if err := s.repo.Write(next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *cartService) Add(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return ErrInvalidProductID
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	logger.Debug("Adding product to cart", map[string]interface{}{
		"product_id": productID,
		"quantity":   quantity,
	})

	snapshot := model.PlaceholderSnapshot(productID)
	cached, resolved := s.catalog.Cached(productID)
	if resolved {
		snapshot = cached.Snapshot()
	}

	var count int
	_, err := s.mutate(func(lines []model.CartLine) ([]model.CartLine, bool, error) {
		if i := model.FindCartLine(lines, productID); i >= 0 {
			lines[i].Count += quantity
			if resolved && lines[i].Product.IsPlaceholder() {
				lines[i].Product = snapshot
				lines[i].Price = snapshot.Price
			}
			count = lines[i].Count
			return lines, true, nil
		}
		count = quantity
		return append(lines, model.CartLine{
			ID:      uuid.NewString(),
			Product: snapshot,
			Count:   quantity,
			Price:   snapshot.Price,
		}), true, nil
	})
	if err != nil {
		logger.Error("Failed to add product to local cart", err, map[string]interface{}{
			"product_id": productID,
		})
		return err
	}
	s.bus.Publish(ctx, events.CartChanged)

	logger.Info("Product added to cart", map[string]interface{}{
		"product_id": productID,
		"count":      count,
		"resolved":   resolved,
	})

	syncErr := s.sync.run(ctx, "cart.add", map[string]interface{}{
		"product_id": productID,
		"count":      count,
	}, func(ctx context.Context, token string) error {
		if err := s.remote.AddCartItem(ctx, productID, token); err != nil {
			return err
		}
		// the add endpoint increments by one; set the absolute count
		if count != 1 {
			return s.remote.UpdateCartItem(ctx, productID, count, token)
		}
		return nil
	})

	if !resolved {
		s.resolveSnapshot(ctx, productID)
	}
	return syncErr
}

// resolveSnapshot replaces a placeholder snapshot once the catalog can
// resolve the product. The line may have been removed in the meantime.
func (s *cartService) resolveSnapshot(ctx context.Context, productID string) {
	product, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		logger.Warn("Keeping placeholder for unresolved product", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
		return
	}
	snapshot := product.Snapshot()

	changed, err := s.mutate(func(lines []model.CartLine) ([]model.CartLine, bool, error) {
		i := model.FindCartLine(lines, productID)
		if i < 0 || !lines[i].Product.IsPlaceholder() {
			return lines, false, nil
		}
		lines[i].Product = snapshot
		lines[i].Price = snapshot.Price
		return lines, true, nil
	})
	if err != nil {
		logger.Error("Failed to store resolved product in cart", err, map[string]interface{}{
			"product_id": productID,
		})
		return
	}
	if changed {
		s.bus.Publish(ctx, events.CartChanged)
	}
}

func (s *cartService) UpdateQuantity(ctx context.Context, productID string, count int) error {
	if count < 1 {
		return ErrInvalidQuantity
	}

	changed, err := s.mutate(func(lines []model.CartLine) ([]model.CartLine, bool, error) {
		i := model.FindCartLine(lines, productID)
		if i < 0 {
			return nil, false, ErrCartLineNotFound
		}
		if lines[i].Count == count {
			return lines, false, nil
		}
		lines[i].Count = count
		return lines, true, nil
	})
	if err != nil {
		if !errors.Is(err, ErrCartLineNotFound) {
			logger.Error("Failed to update local cart quantity", err, map[string]interface{}{
				"product_id": productID,
			})
		}
		return err
	}
	if !changed {
		return nil
	}
	s.bus.Publish(ctx, events.CartChanged)

	logger.Info("Cart quantity updated", map[string]interface{}{
		"product_id": productID,
		"count":      count,
	})

	return s.sync.run(ctx, "cart.update", map[string]interface{}{
		"product_id": productID,
		"count":      count,
	}, func(ctx context.Context, token string) error {
		return s.remote.UpdateCartItem(ctx, productID, count, token)
	})
}

// Remove of a product that is not in the cart is a no-op.
func (s *cartService) Remove(ctx context.Context, productID string) error {
	changed, err := s.mutate(func(lines []model.CartLine) ([]model.CartLine, bool, error) {
		i := model.FindCartLine(lines, productID)
		if i < 0 {
			return lines, false, nil
		}
		return append(lines[:i], lines[i+1:]...), true, nil
	})
	if err != nil {
		logger.Error("Failed to remove product from local cart", err, map[string]interface{}{
			"product_id": productID,
		})
		return err
	}
	if !changed {
		return nil
	}
	s.bus.Publish(ctx, events.CartChanged)

	logger.Info("Product removed from cart", map[string]interface{}{
		"product_id": productID,
	})

	return s.sync.run(ctx, "cart.remove", map[string]interface{}{
		"product_id": productID,
	}, func(ctx context.Context, token string) error {
		return s.remote.RemoveCartItem(ctx, productID, token)
	})
}

func (s *cartService) Clear(ctx context.Context) error {
	_, err := s.mutate(func(lines []model.CartLine) ([]model.CartLine, bool, error) {
		return []model.CartLine{}, true, nil
	})
	if err != nil {
		logger.Error("Failed to clear local cart", err)
		return err
	}
	s.bus.Publish(ctx, events.CartChanged)

	logger.Info("Cart cleared", nil)

	return s.sync.run(ctx, "cart.clear", nil, func(ctx context.Context, token string) error {
		return s.remote.ClearCart(ctx, token)
	})
}

// Refresh pulls the remote cart and merges server-computed fields into the
// local lines. Local lines are never removed; the remote cart is adopted only
// when no local cart was ever stored. Concurrent calls share one fetch.
func (s *cartService) Refresh(ctx context.Context) error {
	_, err, _ := s.refresh.Do("cart", func() (interface{}, error) {
		return nil, s.doRefresh(ctx)
	})
	return err
}

func (s *cartService) doRefresh(ctx context.Context) error {
	var remote []storeapi.CartItem
	fetched := false
	err := s.sync.run(ctx, "cart.fetch", nil, func(ctx context.Context, token string) error {
		items, err := s.remote.FetchCart(ctx, token)
		if err != nil {
			return err
		}
		remote, fetched = items, true
		return nil
	})
	if err != nil || !fetched {
		return err
	}

	remoteLines := make([]model.CartLine, 0, len(remote))
	products := make([]model.Product, 0, len(remote))
	for _, item := range remote {
		line, ok := cartLineFromRemote(item)
		if !ok {
			logger.Warn("Ignoring invalid remote cart item", map[string]interface{}{
				"line_id": item.ID,
			})
			continue
		}
		if j := model.FindCartLine(remoteLines, line.ProductID()); j >= 0 {
			remoteLines[j].Count += line.Count
			logger.Warn("Folding duplicate remote cart line", map[string]interface{}{
				"line_id":    item.ID,
				"product_id": line.ProductID(),
			})
			continue
		}
		remoteLines = append(remoteLines, line)
		if item.Product.Title != "" {
			products = append(products, productFromRemote(item.Product))
		}
	}
	if err := s.catalog.Remember(products); err != nil {
		logger.Warn("Failed to cache products from remote cart", map[string]interface{}{
			"error": err.Error(),
		})
	}

	changed, err := s.mutate(func(lines []model.CartLine) ([]model.CartLine, bool, error) {
		stored, err := s.repo.Stored()
		if err != nil {
			return nil, false, err
		}
		return mergeCart(lines, remoteLines, stored)
	})
	if err != nil {
		logger.Error("Failed to store refreshed cart", err)
		return err
	}

	logger.Info("Cart refreshed from remote store", map[string]interface{}{
		"remote_lines": len(remoteLines),
		"changed":      changed,
	})
	if changed {
		s.bus.Publish(ctx, events.CartChanged)
	}
	return nil
}

// mergeCart adopts remote only when the cart has never been stored locally.
// An emptied cart stays empty.
func mergeCart(local, remote []model.CartLine, stored bool) ([]model.CartLine, bool, error) {
	if !stored {
		return remote, len(remote) > 0, nil
	}

	changed := false
	for i := range local {
		j := model.FindCartLine(remote, local[i].ProductID())
		if j < 0 {
			continue
		}
		if !remote[j].Price.IsZero() && !local[i].Price.Equal(remote[j].Price) {
			local[i].Price = remote[j].Price
			changed = true
		}
		if !remote[j].Product.IsPlaceholder() && !sameSnapshot(local[i].Product, remote[j].Product) {
			local[i].Product = remote[j].Product
			changed = true
		}
	}
	return local, changed, nil
}

func sameSnapshot(a, b model.ProductSnapshot) bool {
	return a.ID == b.ID && a.Title == b.Title && a.ImageCover == b.ImageCover && a.Price.Equal(b.Price)
}
