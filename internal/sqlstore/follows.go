package sqlstore

import (
	"context"
	"fmt"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.FollowStore = (*follows)(nil)

type follows DB

func (s *follows) Follow(ctx context.Context, follower, followed string) error {
	if follower == "" || followed == "" {
		return fmt.Errorf("sqlstore: follow: %w: empty username", apperr.ErrInvalid)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO follows (follower, followed) VALUES (?, ?)`, follower, followed)
	if err != nil {
		return storageErr("follow", err)
	}
	return nil
}

func (s *follows) Unfollow(ctx context.Context, follower, followed string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower = ? AND followed = ?`, follower, followed)
	if err != nil {
		return storageErr("unfollow", err)
	}
	return nil
}

func (s *follows) Followers(ctx context.Context, username string) ([]string, error) {
	return queryStrings(ctx, s.conn, `SELECT follower FROM follows WHERE followed = ? ORDER BY rowid`, username)
}

func (s *follows) Following(ctx context.Context, username string) ([]string, error) {
	return queryStrings(ctx, s.conn, `SELECT followed FROM follows WHERE follower = ? ORDER BY rowid`, username)
}

func (s *follows) IsFollowing(ctx context.Context, follower, followed string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM follows WHERE follower = ? AND followed = ?`, follower, followed).Scan(&n)
	if err != nil {
		return false, storageErr("is following", err)
	}
	return n > 0, nil
}

func (s *follows) Edges(ctx context.Context) ([]models.FollowEdge, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT follower, followed FROM follows ORDER BY rowid`)
	if err != nil {
		return nil, storageErr("edges", err)
	}
	defer rows.Close()
	var out []models.FollowEdge
	for rows.Next() {
		var e models.FollowEdge
		if err := rows.Scan(&e.Follower, &e.Followed); err != nil {
			return nil, storageErr("scan edge", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *follows) RemoveUser(ctx context.Context, username string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower = ? OR followed = ?`, username, username)
	if err != nil {
		return storageErr("remove user edges", err)
	}
	return nil
}
