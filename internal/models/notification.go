package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// NotificationType is the kind of event a notification reports.
type NotificationType string

const (
	NotificationLike    NotificationType = "LIKE"
	NotificationComment NotificationType = "COMMENT"
	NotificationFollow  NotificationType = "FOLLOW"
)

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow:
		return true
	}
	return false
}

// Notification is a single event addressed to Receiver.
// ImageID is empty for follow notifications.
type Notification struct {
	ID        string           `json:"id"`
	Receiver  string           `json:"receiver"`
	Sender    string           `json:"sender"`
	ImageID   string           `json:"image_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
}

// Validate checks the fields that end up in the notifications file.
func (n Notification) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Receiver, validation.Required, validation.Match(usernamePattern)),
		validation.Field(&n.Sender, validation.Required, validation.Match(usernamePattern)),
		validation.Field(&n.ImageID, validation.Match(usernamePattern)),
		validation.Field(&n.Type, validation.Required, validation.In(NotificationLike, NotificationComment, NotificationFollow)),
	)
}

// SelfAddressed reports whether the sender and receiver are the same account.
func (n Notification) SelfAddressed() bool {
	return n.Sender == n.Receiver
}
