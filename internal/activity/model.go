package activity

import (
	"encoding/json"
	"time"
)

// EventType identifies a domain event
type EventType string

const (
	EventExpenseAdded EventType = "expense_added"
	EventSettlement   EventType = "settlement"
	EventGroupCreated EventType = "group_created"
	EventGroupDeleted EventType = "group_deleted"
	EventMemberAdded  EventType = "member_added"
)

// Event is one append-only, immutable activity record. Events carry only the
// identifiers needed to reconstruct the operation; rendering happens in the
// feed, outside the core.
//
// (Type, EntityID, CreatedAtNs) is the natural dedup key: background
// persistence is at-least-once, and a replayed insert must be a no-op.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	UserID      string          `json:"userId"`
	Scope       *string         `json:"scope,omitempty"`
	ExpenseID   *string         `json:"expenseId,omitempty"`
	EntityID    string          `json:"-"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CreatedAtNs int64           `json:"-"`
}
