package repository

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ikkim/storefront-sync/pkg/logger"
)

const (
	cacheFileExt    = ".json"
	cacheTempPrefix = ".tmp-"
)

// CacheFileName is the file a key is stored under inside the cache directory.
func CacheFileName(key string) string {
	return url.QueryEscape(key) + cacheFileExt
}

type fileCacheRepository struct {
	dir string
}

// NewFileCacheRepository stores one file per key in dir, creating it if needed.
func NewFileCacheRepository(dir string) (CacheRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &fileCacheRepository{dir: dir}, nil
}

func (r *fileCacheRepository) path(key string) string {
	return filepath.Join(r.dir, CacheFileName(key))
}

func (r *fileCacheRepository) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	data, err := os.ReadFile(r.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		logger.Error("Failed to read cache file", err, map[string]interface{}{
			"key": key,
		})
		return nil, false, err
	}
	return data, true, nil
}

// Set writes a temp file, syncs it and renames it over the target so readers
// never observe a partial value.
func (r *fileCacheRepository) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	tmp, err := os.CreateTemp(r.dir, cacheTempPrefix+"*")
	if err != nil {
		logger.Error("Failed to create temp cache file", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, r.path(key)); err != nil {
		os.Remove(tmpName)
		logger.Error("Failed to replace cache file", err, map[string]interface{}{
			"key": key,
		})
		return err
	}

	logger.Debug("Cache file written", map[string]interface{}{
		"key":   key,
		"bytes": len(value),
	})
	return nil
}

func (r *fileCacheRepository) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := os.Remove(r.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error("Failed to delete cache file", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

func (r *fileCacheRepository) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, cacheTempPrefix) || !strings.HasSuffix(name, cacheFileExt) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, cacheFileExt))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
