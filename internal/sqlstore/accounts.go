package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/credential"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.AccountStore = (*accounts)(nil)

// accounts only ever holds hashed credentials; legacy lines are upgraded by
// the flat-file backend before they are mirrored here.
type accounts DB

func (s *accounts) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	var a models.Account
	err := s.conn.QueryRowContext(ctx,
		`SELECT username, password_hash, salt, bio FROM users WHERE username = ?`, username,
	).Scan(&a.Username, &a.PasswordHash, &a.Salt, &a.Bio)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("sqlstore: account %s: %w", username, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Account{}, storageErr("find account", err)
	}
	return a, nil
}

func (s *accounts) Save(ctx context.Context, a models.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("sqlstore: save account: %w: %w", apperr.ErrInvalid, err)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, salt, bio) VALUES (?, ?, ?, ?)`,
		a.Username, a.PasswordHash, a.Salt, a.Bio)
	if isConstraint(err) {
		return fmt.Errorf("sqlstore: account %s: %w", a.Username, apperr.ErrAlreadyExists)
	}
	if err != nil {
		return storageErr("save account", err)
	}
	return nil
}

func (s *accounts) Update(ctx context.Context, a models.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("sqlstore: update account: %w: %w", apperr.ErrInvalid, err)
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, salt = ?, bio = ? WHERE username = ?`,
		a.PasswordHash, a.Salt, a.Bio, a.Username)
	if err != nil {
		return storageErr("update account", err)
	}
	return expectRows(res, "account "+a.Username)
}

func (s *accounts) Delete(ctx context.Context, username string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return storageErr("delete account", err)
	}
	return nil
}

func (s *accounts) All(ctx context.Context) ([]models.Account, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT username, password_hash, salt, bio FROM users ORDER BY rowid`)
	if err != nil {
		return nil, storageErr("all accounts", err)
	}
	defer rows.Close()
	out := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.Username, &a.PasswordHash, &a.Salt, &a.Bio); err != nil {
			return nil, storageErr("scan account", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *accounts) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	a, err := s.FindByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return credential.Verify(password, a.PasswordHash, a.Salt), nil
}

// MigrateCredentials is a no-op: the table has no legacy rows.
func (s *accounts) MigrateCredentials(context.Context) (int, error) {
	return 0, nil
}
