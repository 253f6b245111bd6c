package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

type notificationRow struct {
	ID        string         `gorm:"column:id;primaryKey"`
	UserID    string         `gorm:"column:user_id;index"`
	Type      string         `gorm:"column:type"`
	Title     string         `gorm:"column:title"`
	Message   string         `gorm:"column:message"`
	Data      map[string]any `gorm:"column:data;serializer:json"`
	ImageURL  *string        `gorm:"column:image_url"`
	SenderID  *string        `gorm:"column:sender_id"`
	Read      bool           `gorm:"column:is_read"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (notificationRow) TableName() string { return "notifications" }

func rowFromRecord(rec *notification.Record) notificationRow {
	return notificationRow{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Type:      string(rec.Type),
		Title:     rec.Title,
		Message:   rec.Message,
		Data:      rec.Data,
		ImageURL:  rec.ImageURL,
		SenderID:  rec.SenderID,
		Read:      rec.Read,
		CreatedAt: rec.CreatedAt,
	}
}

func (r notificationRow) toDomain() notification.Record {
	return notification.Record{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      notification.Type(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Data:      r.Data,
		ImageURL:  r.ImageURL,
		SenderID:  r.SenderID,
		Read:      r.Read,
		CreatedAt: r.CreatedAt,
	}
}

// NotificationStore implements notification.Store on gorm.
type NotificationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewNotificationStore(db *gorm.DB) *NotificationStore {
	return &NotificationStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts rec, assigning an id and creation time when missing.
func (s *NotificationStore) Create(ctx context.Context, rec *notification.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	row := rowFromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to persist notification for user %s: %w", rec.UserID, err)
	}
	return nil
}

func (s *NotificationStore) List(ctx context.Context, userID string, limit int, before time.Time) ([]notification.Record, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before.UTC())
	}

	var rows []notificationRow
	err := q.Order("created_at DESC").Order("id DESC").Limit(notification.ClampLimit(limit)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	records := make([]notification.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toDomain())
	}
	return records, nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	return s.affectedOne(res, "mark notification read")
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationStore) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&notificationRow{})
	return s.affectedOne(res, "delete notification")
}

func (s *NotificationStore) affectedOne(res *gorm.DB, op string) error {
	if res.Error != nil {
		return fmt.Errorf("failed to %s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notification.ErrNotFound
	}
	return nil
}
