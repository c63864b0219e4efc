package flatfile

import (
	"strings"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/storage"
)

// Session is the logged-in pointer kept in data/users.txt: either empty or a
// single credentials line naming the current account. It is a flat file
// whichever backend holds the records.
type Session struct {
	e *storage.Engine
}

// NewSession returns the session pointer of the data root behind e.
func NewSession(e *storage.Engine) (*Session, error) {
	if err := e.EnsureExists(SessionFile); err != nil {
		return nil, err
	}
	return &Session{e: e}, nil
}

// Login points the session at a.
func (s *Session) Login(a models.Account) error {
	defer s.e.Lock(SessionFile)()
	return s.e.WriteLines(SessionFile, []string{codec.EncodeAccount(a)})
}

// Logout clears the session.
func (s *Session) Logout() error {
	defer s.e.Lock(SessionFile)()
	return s.e.WriteLines(SessionFile, nil)
}

// Current returns the username of the logged-in account, or
// apperr.ErrNotFound when nobody is logged in.
func (s *Session) Current() (string, error) {
	lines, err := s.e.ReadAll(SessionFile)
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if u := codec.AccountKey(line); u != "" {
			return u, nil
		}
	}
	return "", apperr.ErrNotFound
}
