package group

import "time"

// Group is a named circle of users sharing a scope of expenses. A group's id
// doubles as its ledger scope. Groups are soft-deleted so their expense log
// stays replayable.
type Group struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatorID   string     `json:"creatorId"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Member is one user's membership in a group.
type Member struct {
	GroupID  string    `json:"groupId"`
	UserID   string    `json:"userId"`
	AddedBy  string    `json:"addedBy"`
	JoinedAt time.Time `json:"joinedAt"`
}
