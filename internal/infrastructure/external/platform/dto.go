package platform

import (
	"fmt"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse is the standard platform API response wrapper.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// APIErrorDTO is the platform error body for 4xx/5xx responses.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	return fmt.Sprintf("platform api error %s: %s", e.Code, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is the wire representation of a platform user profile.
type UserDTO struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserFromDTO maps the wire user onto the slice this core needs.
func UserFromDTO(dto *UserDTO) *graph.User {
	if dto == nil {
		return nil
	}
	return &graph.User{
		ID:          dto.ID,
		Handle:      dto.Handle,
		DisplayName: dto.DisplayName,
		IsPrivate:   dto.IsPrivate,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY AND NOTIFICATION DTOs
// ══════════════════════════════════════════════════════════════════════════════

// DailyActivityDTO reports whether a user's daily pick already went out.
type DailyActivityDTO struct {
	UserID      string     `json:"user_id"`
	PostedToday bool       `json:"posted_today"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

// NotificationRequestDTO is the payload for pushing a notification.
type NotificationRequestDTO struct {
	RecipientID string `json:"recipient_id"`
	ActorID     string `json:"actor_id"`
	Kind        string `json:"kind"`
}

// Notification kinds the follow core emits.
const (
	NotificationNewFollower   = "new_follower"
	NotificationFollowRequest = "follow_request"
)
