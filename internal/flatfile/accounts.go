package flatfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/credential"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.AccountStore = (*Accounts)(nil)

// Accounts stores credentials in data/credentials.txt.
//
// Legacy "username:password:bio" lines are upgraded to the hashed format the
// first time they are read, so lookups may write to the file.
type Accounts struct {
	e      *storage.Engine
	logger *slog.Logger
}

func (s *Accounts) FindByUsername(_ context.Context, username string) (models.Account, error) {
	if username == "" {
		return models.Account{}, apperr.ErrNotFound
	}
	lines, err := s.e.ReadMatching(CredentialsFile, func(line string) bool {
		return codec.AccountKey(line) == username
	})
	if err != nil {
		return models.Account{}, err
	}
	for _, line := range lines {
		rec, err := codec.DecodeAccount(line)
		if err != nil {
			s.logger.Warn("flatfile: unreadable account line",
				slog.String("username", username),
				slog.String("error", err.Error()))
			continue
		}
		switch r := rec.(type) {
		case codec.HashedCredential:
			return r.Account(), nil
		case codec.LegacyCredential:
			h, err := s.upgrade(username)
			if err != nil {
				return models.Account{}, err
			}
			return h.Account(), nil
		}
	}
	return models.Account{}, apperr.ErrNotFound
}

// upgrade migrates the legacy line of username under the file guard and
// returns the hashed record now on disk.
func (s *Accounts) upgrade(username string) (codec.HashedCredential, error) {
	defer s.e.Lock(CredentialsFile)()

	var (
		out      codec.HashedCredential
		found    bool
		migrated bool
		upErr    error
	)
	_, err := s.e.UpdateMatching(CredentialsFile,
		func(line string) bool { return codec.AccountKey(line) == username },
		func(line string) string {
			rec, err := codec.DecodeAccount(line)
			if err != nil || found {
				return line
			}
			switch r := rec.(type) {
			case codec.HashedCredential:
				out, found = r, true
				return line
			case codec.LegacyCredential:
				h, err := r.Upgrade()
				if err != nil {
					upErr = err
					return line
				}
				out, found, migrated = h, true, true
				return codec.EncodeAccount(h.Account())
			}
			return line
		})
	if err != nil {
		return codec.HashedCredential{}, err
	}
	if upErr != nil {
		return codec.HashedCredential{}, fmt.Errorf("flatfile: migrate %s: %w", username, upErr)
	}
	if !found {
		return codec.HashedCredential{}, apperr.ErrNotFound
	}
	if migrated {
		s.logger.Info("flatfile: migrated legacy credentials", slog.String("username", username))
	}
	return out, nil
}

func (s *Accounts) Save(_ context.Context, a models.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("flatfile: save account: %w: %w", apperr.ErrInvalid, err)
	}
	defer s.e.Lock(CredentialsFile)()

	existing, err := s.e.ReadMatching(CredentialsFile, func(line string) bool {
		return codec.AccountKey(line) == a.Username
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("flatfile: account %s: %w", a.Username, apperr.ErrAlreadyExists)
	}
	return s.e.AppendLine(CredentialsFile, codec.EncodeAccount(a))
}

// Update rewrites the account line. When the session pointer names the same
// account it is rewritten too.
func (s *Accounts) Update(_ context.Context, a models.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("flatfile: update account: %w: %w", apperr.ErrInvalid, err)
	}
	line := codec.EncodeAccount(a)
	match := func(l string) bool { return codec.AccountKey(l) == a.Username }

	n, err := s.withLock(CredentialsFile, func() (int, error) {
		return s.e.UpdateMatching(CredentialsFile, match, func(string) string { return line })
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("flatfile: account %s: %w", a.Username, apperr.ErrNotFound)
	}
	_, err = s.withLock(SessionFile, func() (int, error) {
		return s.e.UpdateMatching(SessionFile, match, func(string) string { return line })
	})
	return err
}

func (s *Accounts) withLock(path string, fn func() (int, error)) (int, error) {
	defer s.e.Lock(path)()
	return fn()
}

func (s *Accounts) Delete(_ context.Context, username string) error {
	defer s.e.Lock(CredentialsFile)()
	_, err := s.e.DeleteMatching(CredentialsFile, func(line string) bool {
		return codec.AccountKey(line) != username
	})
	return err
}

// All returns every readable account, migrating legacy lines first.
func (s *Accounts) All(ctx context.Context) ([]models.Account, error) {
	if _, err := s.MigrateCredentials(ctx); err != nil {
		return nil, err
	}
	lines, err := s.e.ReadAll(CredentialsFile)
	if err != nil {
		return nil, err
	}
	recs := decodeLines(s.logger, CredentialsFile, lines, codec.DecodeAccount)
	out := make([]models.Account, 0, len(recs))
	for _, rec := range recs {
		if h, ok := rec.(codec.HashedCredential); ok {
			out = append(out, h.Account())
		}
	}
	return out, nil
}

func (s *Accounts) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	a, err := s.FindByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return credential.Verify(password, a.PasswordHash, a.Salt), nil
}

// MigrateCredentials upgrades every legacy line in one guarded rewrite.
func (s *Accounts) MigrateCredentials(_ context.Context) (int, error) {
	defer s.e.Lock(CredentialsFile)()

	var upErr error
	n, err := s.e.UpdateMatching(CredentialsFile,
		func(line string) bool {
			rec, err := codec.DecodeAccount(line)
			if err != nil {
				return false
			}
			_, legacy := rec.(codec.LegacyCredential)
			return legacy
		},
		func(line string) string {
			rec, _ := codec.DecodeAccount(line)
			h, err := rec.(codec.LegacyCredential).Upgrade()
			if err != nil {
				upErr = err
				return line
			}
			return codec.EncodeAccount(h.Account())
		})
	if err != nil {
		return 0, err
	}
	if upErr != nil {
		return 0, fmt.Errorf("flatfile: migrate credentials: %w", upErr)
	}
	if n > 0 {
		s.logger.Info("flatfile: migrated legacy credentials", slog.Int("count", n))
	}
	return n, nil
}
