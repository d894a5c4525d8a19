package repository

import (
	"encoding/json"
	"fmt"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

type SessionRepository interface {
	Load() (*model.Session, error)
	Save(session *model.Session) error
	Clear() error
}

type sessionRepository struct {
	cache CacheRepository
}

func NewSessionRepository(cache CacheRepository) SessionRepository {
	return &sessionRepository{cache: cache}
}

// Load returns nil when no usable session is stored.
func (r *sessionRepository) Load() (*model.Session, error) {
	raw, ok, err := r.cache.Get(model.CacheKeySession)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var session model.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		logger.Warn("Discarding unreadable session", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	if !session.Present() {
		return nil, nil
	}
	return &session, nil
}

func (r *sessionRepository) Save(session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return r.cache.Set(model.CacheKeySession, data)
}

func (r *sessionRepository) Clear() error {
	return r.cache.Delete(model.CacheKeySession)
}
