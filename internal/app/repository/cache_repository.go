package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrEmptyKey = errors.New("cache key must not be empty")

// CacheRepository is the durable key/value store behind every local collection.
// Set returns only after the value is durable and visible to Get.
type CacheRepository interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

type gormCacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) CacheRepository {
	return &gormCacheRepository{db: db}
}

func (r *gormCacheRepository) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	var entry model.CacheEntry
	err := r.db.Where("cache_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		logger.Error("Failed to read cache entry", err, map[string]interface{}{
			"key": key,
		})
		return nil, false, err
	}
	return []byte(entry.Value), true, nil
}

func (r *gormCacheRepository) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	entry := model.CacheEntry{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now(),
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		logger.Error("Failed to write cache entry", err, map[string]interface{}{
			"key":   key,
			"bytes": len(value),
		})
		return err
	}

	logger.Debug("Cache entry written", map[string]interface{}{
		"key":   key,
		"bytes": len(value),
	})
	return nil
}

func (r *gormCacheRepository) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if err := r.db.Where("cache_key = ?", key).Delete(&model.CacheEntry{}).Error; err != nil {
		logger.Error("Failed to delete cache entry", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

func (r *gormCacheRepository) Keys(prefix string) ([]string, error) {
	var keys []string
	query := r.db.Model(&model.CacheEntry{}).Order("cache_key ASC")
	if prefix != "" {
		query = query.Where("cache_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	}
	if err := query.Pluck("cache_key", &keys).Error; err != nil {
		logger.Error("Failed to list cache keys", err, map[string]interface{}{
			"prefix": prefix,
		})
		return nil, err
	}
	return keys, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
