package codec

import (
	"strings"

	"github.com/starford/quackstagram/internal/models"
)

const kindFollow = "follow"

// EncodeFollow renders "follower: a; b; c". An empty list keeps the
// trailing space after the colon, like the existing corpus.
func EncodeFollow(l models.FollowList) string {
	return l.Follower + ": " + strings.Join(l.Followed, "; ")
}

// DecodeFollow parses a following.txt line. Entries are trimmed, empty
// entries dropped and duplicates collapsed to their first occurrence.
func DecodeFollow(line string) (models.FollowList, error) {
	head, tail, ok := strings.Cut(line, ":")
	if !ok {
		return models.FollowList{}, malformed(kindFollow, line, "missing ':'")
	}
	follower := strings.TrimSpace(head)
	if follower == "" {
		return models.FollowList{}, malformed(kindFollow, line, "empty follower")
	}
	l := models.FollowList{Follower: follower, Followed: []string{}}
	for _, f := range strings.Split(tail, ";") {
		f = strings.TrimSpace(f)
		if f == "" || l.Contains(f) {
			continue
		}
		l.Followed = append(l.Followed, f)
	}
	return l, nil
}

// FollowKey returns the follower a following.txt line belongs to.
func FollowKey(line string) string {
	head, _, _ := strings.Cut(line, ":")
	return strings.TrimSpace(head)
}
