package flatfile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.FollowStore = (*Follows)(nil)

// Follows stores one "follower: a; b" line per follower in data/following.txt.
type Follows struct {
	e      *storage.Engine
	logger *slog.Logger
}

// list returns the follow list of follower, merged over every line keyed by
// it. A follower with no line has an empty list.
func (s *Follows) list(follower string) (models.FollowList, error) {
	lines, err := s.e.ReadMatching(FollowingFile, func(line string) bool {
		return codec.FollowKey(line) == follower
	})
	if err != nil {
		return models.FollowList{}, err
	}
	out := models.FollowList{Follower: follower, Followed: []string{}}
	for _, l := range decodeLines(s.logger, FollowingFile, lines, codec.DecodeFollow) {
		for _, f := range l.Followed {
			if !out.Contains(f) {
				out.Followed = append(out.Followed, f)
			}
		}
	}
	return out, nil
}

func (s *Follows) Follow(_ context.Context, follower, followed string) error {
	if follower == "" || followed == "" {
		return fmt.Errorf("flatfile: follow: %w: empty username", apperr.ErrInvalid)
	}
	defer s.e.Lock(FollowingFile)()

	current, err := s.list(follower)
	if err != nil {
		return err
	}
	if current.Contains(followed) {
		return nil
	}
	current.Followed = append(current.Followed, followed)
	line := codec.EncodeFollow(current)

	n, err := s.e.UpdateMatching(FollowingFile,
		func(l string) bool { return codec.FollowKey(l) == follower },
		func(string) string { return line })
	if err != nil {
		return err
	}
	if n > 1 {
		// Collapse duplicate lines for the same follower into the first one.
		seen := false
		_, err = s.e.DeleteMatching(FollowingFile, func(l string) bool {
			if codec.FollowKey(l) != follower {
				return true
			}
			keep := !seen
			seen = true
			return keep
		})
		return err
	}
	if n == 0 {
		return s.e.AppendLine(FollowingFile, line)
	}
	return nil
}

// Unfollow removes followed from the list. The follower's line stays even
// when its list becomes empty.
func (s *Follows) Unfollow(_ context.Context, follower, followed string) error {
	defer s.e.Lock(FollowingFile)()

	current, err := s.list(follower)
	if err != nil {
		return err
	}
	if !current.Contains(followed) {
		return nil
	}
	current.Followed = slices.DeleteFunc(current.Followed, func(f string) bool { return f == followed })
	line := codec.EncodeFollow(current)
	_, err = s.e.UpdateMatching(FollowingFile,
		func(l string) bool { return codec.FollowKey(l) == follower },
		func(string) string { return line })
	return err
}

func (s *Follows) lists() ([]models.FollowList, error) {
	lines, err := s.e.ReadAll(FollowingFile)
	if err != nil {
		return nil, err
	}
	return decodeLines(s.logger, FollowingFile, lines, codec.DecodeFollow), nil
}

func (s *Follows) Followers(_ context.Context, username string) ([]string, error) {
	lists, err := s.lists()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, l := range lists {
		if l.Contains(username) && !slices.Contains(out, l.Follower) {
			out = append(out, l.Follower)
		}
	}
	return out, nil
}

func (s *Follows) Following(_ context.Context, username string) ([]string, error) {
	l, err := s.list(username)
	if err != nil {
		return nil, err
	}
	return l.Followed, nil
}

func (s *Follows) IsFollowing(_ context.Context, follower, followed string) (bool, error) {
	l, err := s.list(follower)
	if err != nil {
		return false, err
	}
	return l.Contains(followed), nil
}

func (s *Follows) Edges(_ context.Context) ([]models.FollowEdge, error) {
	lists, err := s.lists()
	if err != nil {
		return nil, err
	}
	var out []models.FollowEdge
	for _, l := range lists {
		for _, e := range l.Edges() {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// RemoveUser drops the user's own line and removes it from every other list.
func (s *Follows) RemoveUser(_ context.Context, username string) error {
	defer s.e.Lock(FollowingFile)()

	lines, err := s.e.ReadAll(FollowingFile)
	if err != nil {
		return err
	}
	out := make([]string, 0, len(lines))
	changed := false
	for _, line := range lines {
		if codec.FollowKey(line) == username {
			changed = true
			continue
		}
		l, err := codec.DecodeFollow(line)
		if err != nil || !l.Contains(username) {
			out = append(out, line)
			continue
		}
		l.Followed = slices.DeleteFunc(l.Followed, func(f string) bool { return f == username })
		out = append(out, codec.EncodeFollow(l))
		changed = true
	}
	if !changed {
		return nil
	}
	return s.e.WriteLines(FollowingFile, out)
}
