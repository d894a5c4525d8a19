package model

import "time"

// CacheSchemaVersion is written into every collection envelope.
const CacheSchemaVersion = 1

const (
	CacheKeyCart          = "cart"
	CacheKeyWishlist      = "wishlist"
	CacheKeySession       = "session"
	CacheKeyProductPrefix = "product:"
)

func ProductCacheKey(productID string) string {
	return CacheKeyProductPrefix + productID
}

// CacheEntry is one key of the durable local cache.
type CacheEntry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CacheEntry) TableName() string {
	return "local_cache_entries"
}
