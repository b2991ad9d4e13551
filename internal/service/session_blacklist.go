package service

import (
	"context"
	"fmt"
	"time"

	"github.com/platformplatform/identity-service/pkg/database"
)

// SessionBlacklistService tracks revoked sessions in Redis so stateless
// access-token checks can reject them before expiry.
type SessionBlacklistService struct {
	redis *database.Redis
}

// NewSessionBlacklistService creates a new session blacklist service
func NewSessionBlacklistService(redis *database.Redis) *SessionBlacklistService {
	return &SessionBlacklistService{redis: redis}
}

// AddSession marks a session id as revoked until its tokens would have expired.
func (s *SessionBlacklistService) AddSession(ctx context.Context, sessionID string, expiry time.Duration) error {
	key := fmt.Sprintf("blacklist:session:%s", sessionID)
	err := s.redis.Client.Set(ctx, key, "1", expiry).Err()
	if err != nil {
		return fmt.Errorf("failed to add session to blacklist: %w", err)
	}
	return nil
}

// IsSessionBlacklisted checks if a session id is in the blacklist
func (s *SessionBlacklistService) IsSessionBlacklisted(ctx context.Context, sessionID string) (bool, error) {
	key := fmt.Sprintf("blacklist:session:%s", sessionID)
	exists, err := s.redis.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session blacklist: %w", err)
	}
	return exists > 0, nil
}

// RemoveSession removes a session from the blacklist (if needed)
func (s *SessionBlacklistService) RemoveSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("blacklist:session:%s", sessionID)
	err := s.redis.Client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to remove session from blacklist: %w", err)
	}
	return nil
}
