package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/storefront-sync/config"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return client, nil
}

// TokenBlacklist records revoked local session tokens by their JWT ID so a
// signed-out token is rejected by every process sharing the Redis instance.
type TokenBlacklist struct {
	client *redis.Client
}

func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

func blacklistKey(tokenID string) string {
	return fmt.Sprintf("blacklist:%s", tokenID)
}

// Revoke adds a token ID to the blacklist until expiry.
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, expiry time.Duration) error {
	if expiry <= 0 {
		return nil
	}

	logger.Debug("Adding token to blacklist", map[string]interface{}{
		"expiry": expiry.String(),
	})

	if err := b.client.Set(ctx, blacklistKey(tokenID), "revoked", expiry).Err(); err != nil {
		logger.Error("Failed to blacklist token", err, nil)
		return err
	}
	return nil
}

// IsRevoked checks if a token ID is in the blacklist
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	val, err := b.client.Get(ctx, blacklistKey(tokenID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to check token blacklist", err, nil)
		return false, err
	}
	return val == "revoked", nil
}
