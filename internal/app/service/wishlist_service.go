package service

import (
	"context"
	"sync"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"golang.org/x/sync/singleflight"
)

type WishlistService interface {
	IDs() ([]string, error)
	Count() (int, error)
	Contains(productID string) (bool, error)
	Items(ctx context.Context) ([]model.Product, error)
	Toggle(ctx context.Context, productID string) (added bool, err error)
	Refresh(ctx context.Context) error
}

type wishlistService struct {
	mu      sync.Mutex
	repo    repository.WishlistRepository
	catalog CatalogService
	remote  RemoteWishlist
	bus     Publisher
	sync    remoteSyncer
	refresh singleflight.Group
}

func NewWishlistService(
	repo repository.WishlistRepository,
	catalog CatalogService,
	remote RemoteWishlist,
	gate SessionGate,
	bus Publisher,
	syncTimeout time.Duration,
) WishlistService {
	return &wishlistService{
		repo:    repo,
		catalog: catalog,
		remote:  remote,
		bus:     bus,
		sync:    newRemoteSyncer(gate, syncTimeout),
	}
}

func (s *wishlistService) IDs() ([]string, error) {
	return s.repo.Read()
}

func (s *wishlistService) Count() (int, error) {
	ids, err := s.repo.Read()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *wishlistService) Contains(productID string) (bool, error) {
	ids, err := s.repo.Read()
	if err != nil {
		return false, err
	}
	return model.WishlistContains(ids, productID), nil
}

// Items resolves the wishlist into catalog products, in wishlist order.
func (s *wishlistService) Items(ctx context.Context) ([]model.Product, error) {
	ids, err := s.repo.Read()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Product{}, nil
	}
	return s.catalog.Resolve(ctx, ids)
}

// Toggle adds productID when absent and removes it when present.
func (s *wishlistService) Toggle(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrInvalidProductID
	}

	s.mu.Lock()
	ids, err := s.repo.Read()
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	next, added := model.ToggleWishlist(ids, productID)
	if err := s.repo.Write(next); err != nil {
		s.mu.Unlock()
		logger.Error("Failed to toggle local wishlist", err, map[string]interface{}{
			"product_id": productID,
		})
		return false, err
	}
	s.mu.Unlock()

	s.bus.Publish(ctx, events.WishlistChanged)

	logger.Info("Wishlist toggled", map[string]interface{}{
		"product_id": productID,
		"added":      added,
		"items":      len(next),
	})

	err = s.sync.run(ctx, "wishlist.toggle", map[string]interface{}{
		"product_id": productID,
		"added":      added,
	}, func(ctx context.Context, token string) error {
		if added {
			return s.remote.AddWishlistItem(ctx, productID, token)
		}
		return s.remote.RemoveWishlistItem(ctx, productID, token)
	})
	return added, err
}

// Refresh adopts the remote wishlist when none was ever stored locally. A
// stored wishlist, even an emptied one, is the working copy and is left
// untouched.
func (s *wishlistService) Refresh(ctx context.Context) error {
	_, err, _ := s.refresh.Do("wishlist", func() (interface{}, error) {
		return nil, s.doRefresh(ctx)
	})
	return err
}

func (s *wishlistService) doRefresh(ctx context.Context) error {
	var remote []string
	fetched := false
	err := s.sync.run(ctx, "wishlist.fetch", nil, func(ctx context.Context, token string) error {
		ids, err := s.remote.FetchWishlist(ctx, token)
		if err != nil {
			return err
		}
		remote, fetched = ids, true
		return nil
	})
	if err != nil || !fetched {
		return err
	}

	remote = model.DedupeWishlist(remote)

	s.mu.Lock()
	stored, err := s.repo.Stored()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	adopt := !stored && len(remote) > 0
	if adopt {
		if err := s.repo.Write(remote); err != nil {
			s.mu.Unlock()
			logger.Error("Failed to store refreshed wishlist", err)
			return err
		}
	}
	s.mu.Unlock()

	logger.Info("Wishlist refreshed from remote store", map[string]interface{}{
		"remote_items": len(remote),
		"adopted":      adopt,
	})
	if adopt {
		s.bus.Publish(ctx, events.WishlistChanged)
	}
	return nil
}
