// Package models defines the domain types for quackstagram.
package models

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// usernamePattern keeps usernames free of the delimiters used by the
// line formats (':' ';' ',' and whitespace).
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// MaxBioLength bounds the bio so one record stays a short line.
const MaxBioLength = 1000

// Account is a registered user. The counters are derived values and are
// recomputed from the picture and follow stores on every fetch.
type Account struct {
	Username       string `json:"username"`
	Bio            string `json:"bio"`
	PasswordHash   string `json:"-"`
	Salt           string `json:"-"`
	PostsCount     int    `json:"posts_count"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
}

// Validate checks the fields that end up in the credentials file.
func (a Account) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Username, validation.Required, validation.Length(1, 64), validation.Match(usernamePattern)),
		validation.Field(&a.Bio, validation.RuneLength(0, MaxBioLength), validation.By(singleLine)),
		validation.Field(&a.PasswordHash, validation.Required),
		validation.Field(&a.Salt, validation.Required),
	)
}

// ValidateUsername reports whether name can be used as an account key.
func ValidateUsername(name string) error {
	return validation.Validate(name, validation.Required, validation.Length(1, 64), validation.Match(usernamePattern))
}
