package repository

import (
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

type WishlistRepository interface {
	// Stored is false until the wishlist has been written once. An emptied
	// wishlist is still stored.
	Stored() (bool, error)
	Read() ([]string, error)
	Write(ids []string) error
}

type wishlistRepository struct {
	cache CacheRepository
}

func NewWishlistRepository(cache CacheRepository) WishlistRepository {
	return &wishlistRepository{cache: cache}
}

// Read returns the wishlist with duplicates dropped, first occurrence wins.
func (r *wishlistRepository) Read() ([]string, error) {
	ids, err := readCollection[string](r.cache, model.CacheKeyWishlist)
	if err != nil {
		logger.Error("Failed to read wishlist from local cache", err)
		return nil, err
	}
	return model.DedupeWishlist(ids), nil
}

func (r *wishlistRepository) Write(ids []string) error {
	logger.Debug("Writing wishlist to local cache", map[string]interface{}{
		"items": len(ids),
	})

	if err := writeCollection(r.cache, model.CacheKeyWishlist, ids); err != nil {
		logger.Error("Failed to write wishlist to local cache", err, map[string]interface{}{
			"items": len(ids),
		})
		return err
	}
	return nil
}

func (r *wishlistRepository) Stored() (bool, error) {
	stored, err := collectionStored(r.cache, model.CacheKeyWishlist)
	if err != nil {
		logger.Error("Failed to check wishlist in local cache", err)
		return false, err
	}
	return stored, nil
}
