package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// ProductRepository caches catalog entries under product:<id> keys.
type ProductRepository interface {
	Find(id string) (*model.Product, bool, error)
	Save(product *model.Product) error
	SaveAll(products []model.Product) error
	List() ([]model.Product, error)
}

type productRepository struct {
	cache CacheRepository
}

func NewProductRepository(cache CacheRepository) ProductRepository {
	return &productRepository{cache: cache}
}

func (r *productRepository) Find(id string) (*model.Product, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	raw, ok, err := r.cache.Get(model.ProductCacheKey(id))
	if err != nil || !ok {
		return nil, false, err
	}

	var product model.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		logger.Warn("Discarding unreadable cached product", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		return nil, false, nil
	}
	return &product, true, nil
}

func (r *productRepository) Save(product *model.Product) error {
	if product.ID == "" {
		return fmt.Errorf("%w: product without ID", ErrEmptyKey)
	}
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	return r.cache.Set(model.ProductCacheKey(product.ID), data)
}

func (r *productRepository) SaveAll(products []model.Product) error {
	for i := range products {
		if err := r.Save(&products[i]); err != nil {
			return err
		}
	}

	logger.Debug("Products cached", map[string]interface{}{
		"count": len(products),
	})
	return nil
}

func (r *productRepository) List() ([]model.Product, error) {
	keys, err := r.cache.Keys(model.CacheKeyProductPrefix)
	if err != nil {
		return nil, err
	}

	products := make([]model.Product, 0, len(keys))
	for _, key := range keys {
		product, ok, err := r.Find(strings.TrimPrefix(key, model.CacheKeyProductPrefix))
		if err != nil {
			return nil, err
		}
		if ok {
			products = append(products, *product)
		}
	}
	return products, nil
}
