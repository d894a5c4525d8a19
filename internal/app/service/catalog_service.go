package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// CatalogService resolves product display data, preferring the local cache.
type CatalogService interface {
	Cached(productID string) (*model.Product, bool)
	Lookup(ctx context.Context, productID string) (*model.Product, error)
	Resolve(ctx context.Context, ids []string) ([]model.Product, error)
	Remember(products []model.Product) error
	Import(products []model.Product) (int, error)
	List() ([]model.Product, error)
}

type catalogService struct {
	repo    repository.ProductRepository
	remote  RemoteCatalog
	timeout time.Duration
}

func NewCatalogService(repo repository.ProductRepository, remote RemoteCatalog, timeout time.Duration) CatalogService {
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	return &catalogService{repo: repo, remote: remote, timeout: timeout}
}

func (s *catalogService) Cached(productID string) (*model.Product, bool) {
	product, ok, err := s.repo.Find(productID)
	if err != nil {
		logger.Warn("Failed to read cached product", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
		return nil, false
	}
	return product, ok
}

// Lookup returns the cached product or fetches and caches it.
func (s *catalogService) Lookup(ctx context.Context, productID string) (*model.Product, error) {
	if product, ok := s.Cached(productID); ok {
		return product, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remote, err := s.remote.FetchProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	product := productFromRemote(*remote)
	if err := s.repo.Save(&product); err != nil {
		logger.Warn("Failed to cache product", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
	}
	return &product, nil
}

// Resolve returns the products for ids in the same order, fetching the
// catalog at most once for the ones not cached. Unresolvable IDs are skipped.
func (s *catalogService) Resolve(ctx context.Context, ids []string) ([]model.Product, error) {
	found := make(map[string]model.Product, len(ids))
	missing := 0
	for _, id := range ids {
		if product, ok := s.Cached(id); ok {
			found[id] = *product
		} else {
			missing++
		}
	}

	if missing > 0 {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		remote, err := s.remote.FetchProducts(fetchCtx)
		cancel()
		if err != nil {
			logger.Warn("Failed to fetch catalog, showing cached products only", map[string]interface{}{
				"missing": missing,
				"error":   err.Error(),
			})
		} else {
			products := make([]model.Product, 0, len(remote))
			for _, p := range remote {
				product := productFromRemote(p)
				products = append(products, product)
				if _, ok := found[product.ID]; !ok {
					found[product.ID] = product
				}
			}
			if err := s.Remember(products); err != nil {
				logger.Warn("Failed to cache catalog", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	result := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := found[id]; ok {
			result = append(result, product)
		} else {
			logger.Debug("Product not resolvable, skipping", map[string]interface{}{
				"product_id": id,
			})
		}
	}
	return result, nil
}

func (s *catalogService) Remember(products []model.Product) error {
	valid := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.ID != "" {
			valid = append(valid, p)
		}
	}
	return s.repo.SaveAll(valid)
}

// Import validates and caches products from an offline catalog source.
func (s *catalogService) Import(products []model.Product) (int, error) {
	logger.Info("Importing catalog", map[string]interface{}{
		"count": len(products),
	})

	for i, p := range products {
		if err := validateProduct(p); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if err := s.repo.SaveAll(products); err != nil {
		logger.Error("Failed to import catalog", err)
		return 0, err
	}

	logger.Info("Catalog imported", map[string]interface{}{
		"count": len(products),
	})
	return len(products), nil
}

func (s *catalogService) List() ([]model.Product, error) {
	return s.repo.List()
}

func validateProduct(p model.Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: missing _id", ErrInvalidProduct)
	case p.Title == "":
		return fmt.Errorf("%w: %s has no title", ErrInvalidProduct, p.ID)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: %s has a negative price", ErrInvalidProduct, p.ID)
	case p.Quantity < 0:
		return fmt.Errorf("%w: %s has negative stock", ErrInvalidProduct, p.ID)
	}
	return nil
}

func productFromRemote(p storeapi.Product) model.Product {
	return model.Product{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		ImageCover:         p.ImageCover,
		Price:              p.Price,
		PriceAfterDiscount: p.PriceAfterDiscount,
		Quantity:           p.Quantity,
	}
}

// cartLineFromRemote returns false for items that cannot form a valid line.
func cartLineFromRemote(item storeapi.CartItem) (model.CartLine, bool) {
	if item.Product.ID == "" || item.Count < 1 {
		return model.CartLine{}, false
	}
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	product := productFromRemote(item.Product)
	snapshot := product.Snapshot()
	if snapshot.Title == "" {
		snapshot = model.PlaceholderSnapshot(item.Product.ID)
	}
	return model.CartLine{
		ID:      id,
		Product: snapshot,
		Count:   item.Count,
		Price:   item.Price,
	}, true
}

func userFromRemote(u *storeapi.User) *model.UserSnapshot {
	role := model.UserRole(u.Role)
	if role == "" {
		role = model.RoleUser
	}
	return &model.UserSnapshot{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
		Role:  role,
	}
}
