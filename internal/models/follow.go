package models

// FollowEdge is a directed follow relationship.
type FollowEdge struct {
	Follower string `json:"follower"`
	Followed string `json:"followed"`
}

// FollowList is the dense on-disk shape of the follow graph: one follower
// and every account it follows, in insertion order.
type FollowList struct {
	Follower string
	Followed []string
}

// Contains reports whether the list already holds username.
func (l FollowList) Contains(username string) bool {
	for _, f := range l.Followed {
		if f == username {
			return true
		}
	}
	return false
}

// Edges expands the list into individual edges.
func (l FollowList) Edges() []FollowEdge {
	out := make([]FollowEdge, 0, len(l.Followed))
	for _, f := range l.Followed {
		out = append(out, FollowEdge{Follower: l.Follower, Followed: f})
	}
	return out
}
