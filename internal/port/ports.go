// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
)

// ProfileStore persists the per-user subscription profile. Implemented by
// the Supabase adapter (or any other persistence layer). Updates are plain
// single-row writes: the backing store offers no transactions beyond that,
// and last-write-wins on the row is an accepted limitation.
type ProfileStore interface {
	// GetProfile returns nil, nil when no row exists for the user.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.Profile, error)
	// ListPendingRequests returns profiles with a pending request, newest
	// request first.
	ListPendingRequests(ctx context.Context) ([]domain.Profile, error)
}

// ContactStore appends contact messages. The write path is the public
// contact form; the read path serves the admin overview only.
type ContactStore interface {
	InsertContactMessage(ctx context.Context, msg *domain.ContactMessage) error
	ListRecentContactMessages(ctx context.Context, limit int) ([]domain.ContactMessage, error)
}

// AuthGateway delegates credential flows to the hosted identity provider.
type AuthGateway interface {
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	RecoverPassword(ctx context.Context, email string) error
	ResendConfirmation(ctx context.Context, email string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
