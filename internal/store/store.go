// Package store defines the storage contract shared by the flat-file and
// SQLite backends. The application depends on these interfaces only, so a
// backend can be swapped without touching callers.
//
// Errors follow the apperr taxonomy: absent keys return apperr.ErrNotFound,
// backend failures wrap apperr.ErrStorage, and credential checks never
// distinguish an unknown user from a wrong password.
package store

import (
	"context"
	"io"

	"github.com/starford/quackstagram/internal/models"
)

// AccountStore persists accounts and their credentials.
type AccountStore interface {
	// FindByUsername returns the account or apperr.ErrNotFound. Counters are
	// left at zero; the caller recomputes them.
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	// Save adds a new account; apperr.ErrAlreadyExists if the username is taken.
	Save(ctx context.Context, a models.Account) error
	// Update rewrites an existing account; apperr.ErrNotFound if absent.
	Update(ctx context.Context, a models.Account) error
	// Delete removes the account. Deleting an absent account is not an error.
	Delete(ctx context.Context, username string) error
	All(ctx context.Context) ([]models.Account, error)
	// VerifyCredentials reports whether password matches. An unknown user
	// yields false with a nil error.
	VerifyCredentials(ctx context.Context, username, password string) (bool, error)
	// MigrateCredentials upgrades every legacy plaintext credential and
	// returns how many were upgraded.
	MigrateCredentials(ctx context.Context) (int, error)
}

// FollowStore persists the directed follow graph.
type FollowStore interface {
	// Follow adds follower→followed; following twice keeps one edge.
	Follow(ctx context.Context, follower, followed string) error
	// Unfollow removes the edge if present.
	Unfollow(ctx context.Context, follower, followed string) error
	Followers(ctx context.Context, username string) ([]string, error)
	Following(ctx context.Context, username string) ([]string, error)
	IsFollowing(ctx context.Context, follower, followed string) (bool, error)
	Edges(ctx context.Context) ([]models.FollowEdge, error)
	// RemoveUser drops every edge that starts or ends at username.
	RemoveUser(ctx context.Context, username string) error
}

// NotificationStore persists notifications. Notifications are append-only.
type NotificationStore interface {
	// ForReceiver returns the receiver's notifications, newest first.
	ForReceiver(ctx context.Context, receiver string) ([]models.Notification, error)
	// Save appends n. Self-addressed notifications are dropped silently.
	Save(ctx context.Context, n models.Notification) error
	// Delete removes the notifications with the given id; apperr.ErrNotFound
	// if there are none.
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]models.Notification, error)
	// DeleteInvolving removes every notification sent or received by username.
	DeleteInvolving(ctx context.Context, username string) error
}

// PictureStore persists picture metadata and image bytes.
type PictureStore interface {
	FindByID(ctx context.Context, imageID string) (models.Picture, error)
	ByOwner(ctx context.Context, owner string) ([]models.Picture, error)
	// FromFollowed joins the follow list of username with each followed
	// owner's pictures.
	FromFollowed(ctx context.Context, username string) ([]models.Picture, error)
	All(ctx context.Context) ([]models.Picture, error)
	Save(ctx context.Context, p models.Picture) error
	// Update rewrites caption and likes; apperr.ErrNotFound if absent.
	Update(ctx context.Context, p models.Picture) error
	// Like adds exactly one like and returns the updated picture.
	Like(ctx context.Context, imageID string) (models.Picture, error)
	// Delete removes the metadata and the image bytes.
	Delete(ctx context.Context, imageID string) error
	// NextImageID returns "<owner>_<max existing sequence + 1>".
	NextImageID(ctx context.Context, owner string) (string, error)
	// PutImage stores the bytes of a new imageID and returns their path.
	// apperr.ErrAlreadyExists if bytes are already stored under imageID;
	// existing images are never overwritten.
	PutImage(ctx context.Context, imageID string, r io.Reader) (string, error)
}

// Backend bundles the four stores of one storage implementation.
type Backend interface {
	Accounts() AccountStore
	Follows() FollowStore
	Notifications() NotificationStore
	Pictures() PictureStore
	Close() error
}
