package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// deviceTokenRow is the device_tokens table. token carries a unique index and
// is the upsert key.
type deviceTokenRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Token     string    `gorm:"column:token;uniqueIndex"`
	UserID    string    `gorm:"column:user_id;index"`
	DeviceID  string    `gorm:"column:device_id"`
	Platform  string    `gorm:"column:platform"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (deviceTokenRow) TableName() string { return "device_tokens" }

func (r deviceTokenRow) toDomain() dispatch.DeviceToken {
	return dispatch.DeviceToken{
		ID:        r.ID,
		Token:     r.Token,
		UserID:    r.UserID,
		DeviceID:  r.DeviceID,
		Platform:  dispatch.Platform(r.Platform),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// TokenStore implements dispatch.TokenStore on gorm.
type TokenStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTokenStore creates the registry.
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Register upserts on the token value. A single INSERT ... ON CONFLICT
// statement lets concurrent duplicate registrations converge on one row.
func (s *TokenStore) Register(ctx context.Context, reg dispatch.Registration) error {
	if reg.UserID == "" || reg.Token == "" {
		return fmt.Errorf("user id and token are required")
	}
	platform := reg.Platform
	if platform == "" {
		platform = dispatch.PlatformUnknown
	}

	now := s.now()
	row := deviceTokenRow{
		ID:        uuid.NewString(),
		Token:     reg.Token,
		UserID:    reg.UserID,
		DeviceID:  reg.DeviceID,
		Platform:  string(platform),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_id", "platform", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

func (s *TokenStore) Unregister(ctx context.Context, userID, token string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&deviceTokenRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to unregister device token: %w", err)
	}
	return nil
}

func (s *TokenStore) TokensForUsers(ctx context.Context, userIDs []string) ([]dispatch.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []deviceTokenRow
	err := s.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}

	tokens := make([]dispatch.DeviceToken, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, r.toDomain())
	}
	return tokens, nil
}

func (s *TokenStore) Evict(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&deviceTokenRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to evict device token: %w", err)
	}
	return nil
}

// OwnerOf returns the user currently holding token, or "" if none does.
func (s *TokenStore) OwnerOf(ctx context.Context, token string) (string, error) {
	var row deviceTokenRow
	err := s.db.WithContext(ctx).Select("user_id").Where("token = ?", token).Limit(1).Find(&row).Error
	if err != nil {
		return "", fmt.Errorf("failed to look up token owner: %w", err)
	}
	return row.UserID, nil
}
