package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// KeyPrefix namespaces the per-user token lists.
const KeyPrefix = "notify:tokens:"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest any) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Del removes the keys.
	Del(ctx context.Context, keys ...string) error
}

// OwnerLookup is implemented by stores that can say who holds a token. The
// decorator uses it to invalidate the previous owner on transfer or eviction.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, token string) (string, error)
}

// CachedTokenStore is a Decorator that adds Read-Aside caching to any TokenStore.
type CachedTokenStore struct {
	realStore dispatch.TokenStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedTokenStore creates the decorator.
func NewCachedTokenStore(realStore dispatch.TokenStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedTokenStore"),
	}
}

// --- READ PATH (Read-Aside) ---

// TokensForUsers serves cached users from Redis and loads every miss from the
// real store in one batched read. Cache failures degrade to a store read.
func (s *CachedTokenStore) TokensForUsers(ctx context.Context, userIDs []string) ([]dispatch.DeviceToken, error) {
	var result []dispatch.DeviceToken
	var misses []string

	for _, userID := range userIDs {
		var cached []dispatch.DeviceToken
		if err := s.cache.Get(ctx, s.cacheKey(userID), &cached); err == nil {
			result = append(result, cached...)
			continue
		}
		misses = append(misses, userID)
	}
	if len(misses) == 0 {
		return result, nil
	}

	fresh, err := s.realStore.TokensForUsers(ctx, misses)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]dispatch.DeviceToken, len(misses))
	for _, userID := range misses {
		byUser[userID] = []dispatch.DeviceToken{}
	}
	for _, t := range fresh {
		byUser[t.UserID] = append(byUser[t.UserID], t)
	}

	// Populate Cache (Fire and Forget). Empty lists are cached too.
	for userID, tokens := range byUser {
		if err := s.cache.Set(ctx, s.cacheKey(userID), tokens, s.ttl); err != nil {
			s.logger.Debug("Failed to populate token cache", "user_id", userID, "err", err)
		}
	}

	return append(result, fresh...), nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

// Register invalidates the registering user and, on transfer, the previous owner.
func (s *CachedTokenStore) Register(ctx context.Context, reg dispatch.Registration) error {
	previous := s.ownerOf(ctx, reg.Token)
	if err := s.realStore.Register(ctx, reg); err != nil {
		return err
	}
	return s.invalidate(ctx, reg.UserID, previous)
}

// Unregister clears the cache even though only the owner's row can change, so
// notifications stop immediately.
func (s *CachedTokenStore) Unregister(ctx context.Context, userID, token string) error {
	if err := s.realStore.Unregister(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedTokenStore) Evict(ctx context.Context, token string) error {
	owner := s.ownerOf(ctx, token)
	if err := s.realStore.Evict(ctx, token); err != nil {
		return err
	}
	return s.invalidate(ctx, owner)
}

// --- Helpers ---

func (s *CachedTokenStore) ownerOf(ctx context.Context, token string) string {
	lookup, ok := s.realStore.(OwnerLookup)
	if !ok {
		return ""
	}
	owner, err := lookup.OwnerOf(ctx, token)
	if err != nil {
		s.logger.Debug("Failed to look up token owner", "err", err)
		return ""
	}
	return owner
}

func (s *CachedTokenStore) invalidate(ctx context.Context, userIDs ...string) error {
	seen := make(map[string]struct{}, len(userIDs))
	var keys []string
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		keys = append(keys, s.cacheKey(userID))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate token cache: %w", err)
	}
	return nil
}

func (s *CachedTokenStore) cacheKey(userID string) string {
	return KeyPrefix + userID
}
