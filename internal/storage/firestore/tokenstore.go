package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

const (
	// DefaultCollection holds one document per device token.
	DefaultCollection = "device_tokens"
	// maxInValues is Firestore's limit on the values of an "in" filter.
	maxInValues = 30
)

// FirestoreStore implements dispatch.TokenStore using Google Cloud Firestore.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection, now: time.Now}
}

// deviceRecord is the internal DB representation.
type deviceRecord struct {
	Token     string    `firestore:"token"`
	UserID    string    `firestore:"user_id"`
	DeviceID  string    `firestore:"device_id"`
	Platform  string    `firestore:"platform"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Register upserts by token. The document id is the token hash, so duplicate
// registrations land on the same document; the transaction keeps created_at
// while transferring ownership.
func (s *FirestoreStore) Register(ctx context.Context, reg dispatch.Registration) error {
	if reg.UserID == "" || reg.Token == "" {
		return fmt.Errorf("user id and token are required")
	}
	platform := reg.Platform
	if platform == "" {
		platform = dispatch.PlatformUnknown
	}
	ref := s.tokenRef(reg.Token)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := s.now().UTC()
		record := deviceRecord{
			Token:     reg.Token,
			UserID:    reg.UserID,
			DeviceID:  reg.DeviceID,
			Platform:  string(platform),
			CreatedAt: now,
			UpdatedAt: now,
		}

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			var existing deviceRecord
			if err := snap.DataTo(&existing); err == nil && !existing.CreatedAt.IsZero() {
				record.CreatedAt = existing.CreatedAt
			}
		}
		return tx.Set(ref, record)
	})
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

// Unregister deletes the token only when userID owns it.
func (s *FirestoreStore) Unregister(ctx context.Context, userID, token string) error {
	ref := s.tokenRef(token)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var record deviceRecord
		if err := snap.DataTo(&record); err != nil {
			return err
		}
		if record.UserID != userID {
			return nil
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("failed to unregister device token: %w", err)
	}
	return nil
}

// TokensForUsers queries by owner, chunking the ids to the "in" filter limit.
func (s *FirestoreStore) TokensForUsers(ctx context.Context, userIDs []string) ([]dispatch.DeviceToken, error) {
	var tokens []dispatch.DeviceToken
	for start := 0; start < len(userIDs); start += maxInValues {
		end := min(start+maxInValues, len(userIDs))
		chunk, err := s.queryOwners(ctx, userIDs[start:end])
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, chunk...)
	}
	return tokens, nil
}

func (s *FirestoreStore) queryOwners(ctx context.Context, userIDs []string) ([]dispatch.DeviceToken, error) {
	iter := s.client.Collection(s.collection).Where("user_id", "in", userIDs).Documents(ctx)
	defer iter.Stop()

	var tokens []dispatch.DeviceToken
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil || record.Token == "" {
			// Corrupt rows are skipped rather than failing the whole fan-out.
			continue
		}
		tokens = append(tokens, dispatch.DeviceToken{
			ID:        doc.Ref.ID,
			Token:     record.Token,
			UserID:    record.UserID,
			DeviceID:  record.DeviceID,
			Platform:  dispatch.Platform(record.Platform),
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return tokens, nil
}

func (s *FirestoreStore) Evict(ctx context.Context, token string) error {
	if _, err := s.tokenRef(token).Delete(ctx); err != nil {
		return fmt.Errorf("failed to evict device token: %w", err)
	}
	return nil
}

// OwnerOf returns the user currently holding token, or "" if none does.
func (s *FirestoreStore) OwnerOf(ctx context.Context, token string) (string, error) {
	snap, err := s.tokenRef(token).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up token owner: %w", err)
	}
	var record deviceRecord
	if err := snap.DataTo(&record); err != nil {
		return "", err
	}
	return record.UserID, nil
}

// --- Helpers ---

// tokenRef: device_tokens/{sha256(token)}
func (s *FirestoreStore) tokenRef(token string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(hashToken(token))
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
