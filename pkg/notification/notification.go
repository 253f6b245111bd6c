// Package notification contains the public domain models for in-app
// notification records and the parameters feature handlers pass in.
package notification

import (
	"fmt"
	"time"
)

// Type classifies what triggered a notification.
type Type string

const (
	TypeLike        Type = "LIKE"
	TypeComment     Type = "COMMENT"
	TypeFollow      Type = "FOLLOW"
	TypeChat        Type = "CHAT"
	TypeLostPet     Type = "LOST_PET"
	TypeFoundPet    Type = "FOUND_PET"
	TypePetSighting Type = "PET_SIGHTING"
	TypePetFound    Type = "PET_FOUND"
	TypeClaim       Type = "CLAIM"
	TypeSystem      Type = "SYSTEM"
)

var knownTypes = map[Type]struct{}{
	TypeLike: {}, TypeComment: {}, TypeFollow: {}, TypeChat: {}, TypeLostPet: {},
	TypeFoundPet: {}, TypePetSighting: {}, TypePetFound: {}, TypeClaim: {}, TypeSystem: {},
}

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Record is one entry of a user's in-app notification list. The list is the
// durable source of truth; push delivery is only a latency optimisation.
type Record struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	ImageURL  *string        `json:"imageUrl,omitempty"`
	SenderID  *string        `json:"senderId,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Params describes a notification for a single recipient.
type Params struct {
	UserID   string         `json:"userId" validate:"required"`
	Type     Type           `json:"type" validate:"required"`
	Title    string         `json:"title" validate:"required"`
	Message  string         `json:"message" validate:"required"`
	Data     map[string]any `json:"data,omitempty"`
	ImageURL *string        `json:"imageUrl,omitempty"`
	SenderID *string        `json:"senderId,omitempty"`
}

// BulkParams describes the same notification sent to many recipients.
type BulkParams struct {
	UserIDs  []string       `json:"userIds" validate:"required,min=1,dive,required"`
	Type     Type           `json:"type" validate:"required"`
	Title    string         `json:"title" validate:"required"`
	Message  string         `json:"message" validate:"required"`
	Data     map[string]any `json:"data,omitempty"`
	ImageURL *string        `json:"imageUrl,omitempty"`
	SenderID *string        `json:"senderId,omitempty"`
}

// ForUser expands bulk parameters into the single-recipient form.
func (b BulkParams) ForUser(userID string) Params {
	return Params{
		UserID:   userID,
		Type:     b.Type,
		Title:    b.Title,
		Message:  b.Message,
		Data:     b.Data,
		ImageURL: b.ImageURL,
		SenderID: b.SenderID,
	}
}

// Validate checks the fields every record needs before it can be persisted.
func (p Params) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown notification type %q", p.Type)
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
