package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// envelope is the persisted layout of a collection. Version 0 is the legacy
// bare JSON array.
type envelope[T any] struct {
	Version int `json:"version"`
	Items   []T `json:"items"`
}

// readCollection loads the collection under key. Corrupt or unknown-version
// data yields an empty collection; only backend failures are returned.
func readCollection[T any](cache CacheRepository, key string) ([]T, error) {
	raw, ok, err := cache.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []T{}, nil
	}

	items, version, err := decodeCollection[T](raw)
	if err != nil {
		logger.Warn("Discarding unreadable cache collection", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return []T{}, nil
	}
	if version < model.CacheSchemaVersion {
		logger.Debug("Read legacy cache collection", map[string]interface{}{
			"key":     key,
			"version": version,
		})
	}
	return items, nil
}

func decodeCollection[T any](raw []byte) ([]T, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []T{}, model.CacheSchemaVersion, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []T{}
		}
		return items, 0, nil
	case '{':
		var env envelope[T]
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, 0, err
		}
		if env.Version < 1 || env.Version > model.CacheSchemaVersion {
			return nil, env.Version, fmt.Errorf("unsupported schema version %d", env.Version)
		}
		if env.Items == nil {
			env.Items = []T{}
		}
		return env.Items, env.Version, nil
	default:
		return nil, 0, fmt.Errorf("unexpected leading byte %q", trimmed[0])
	}
}

// collectionStored reports whether key has ever been written, including as an
// empty or unreadable collection.
func collectionStored(cache CacheRepository, key string) (bool, error) {
	_, ok, err := cache.Get(key)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func writeCollection[T any](cache CacheRepository, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(envelope[T]{Version: model.CacheSchemaVersion, Items: items})
	if err != nil {
		return fmt.Errorf("failed to encode %s collection: %w", key, err)
	}
	return cache.Set(key, data)
}
