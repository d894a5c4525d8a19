package repository

import (
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

type CartRepository interface {
	// Stored is false until the cart has been written once. An emptied
	// cart is still stored.
	Stored() (bool, error)
	Read() ([]model.CartLine, error)
	Write(lines []model.CartLine) error
}

type cartRepository struct {
	cache CacheRepository
}

func NewCartRepository(cache CacheRepository) CartRepository {
	return &cartRepository{cache: cache}
}

func (r *cartRepository) Read() ([]model.CartLine, error) {
	lines, err := readCollection[model.CartLine](r.cache, model.CacheKeyCart)
	if err != nil {
		logger.Error("Failed to read cart from local cache", err)
		return nil, err
	}
	return lines, nil
}

func (r *cartRepository) Write(lines []model.CartLine) error {
	logger.Debug("Writing cart to local cache", map[string]interface{}{
		"lines": len(lines),
	})

	if err := writeCollection(r.cache, model.CacheKeyCart, lines); err != nil {
		logger.Error("Failed to write cart to local cache", err, map[string]interface{}{
			"lines": len(lines),
		})
		return err
	}
	return nil
}

func (r *cartRepository) Stored() (bool, error) {
	stored, err := collectionStored(r.cache, model.CacheKeyCart)
	if err != nil {
		logger.Error("Failed to check cart in local cache", err)
		return false, err
	}
	return stored, nil
}
