package dispatch

import (
	"context"
)

// ProviderClient is one delivery strategy for a push gateway. Implementations
// own their wire format and authentication; callers only see tokens, the
// logical Message and typed DeliveryErrors.
type ProviderClient interface {
	// Channel names the gateway the client talks to.
	Channel() Channel
	// MaxBatch is the largest token list a single SendBatch call accepts.
	MaxBatch() int
	// SendOne delivers msg to a single device token.
	SendOne(ctx context.Context, token string, msg Message) (*Response, error)
	// SendBatch delivers msg to every token in one request. len(tokens) must
	// not exceed MaxBatch.
	SendBatch(ctx context.Context, tokens []string, msg Message) (*Response, error)
}

// TokenStore defines the contract for the device token registry.
// It remembers "where" to send notifications for a user.
type TokenStore interface {
	// Register upserts a token keyed by its value. A token already owned by
	// another user is transferred to reg.UserID.
	Register(ctx context.Context, reg Registration) error

	// Unregister deletes the token only when it belongs to userID.
	Unregister(ctx context.Context, userID, token string) error

	// TokensForUsers retrieves every token of every given user in one read.
	TokensForUsers(ctx context.Context, userIDs []string) ([]DeviceToken, error)

	// Evict deletes a token regardless of its owner.
	Evict(ctx context.Context, token string) error
}

// Queue hands dispatch jobs off the request path.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}
