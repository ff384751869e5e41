package activity

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/tally/internal/jobs"
	"github.com/fkhayef/tally/pkg/pagination"
)

// JobTypePersist is the job type for background event persistence.
const JobTypePersist = "activity.persist"

// Emitter records domain events. Emission happens after the authoritative
// write and runs in the background; a failed emission never fails the write.
type Emitter struct {
	runner *jobs.Runner
	log    *zap.Logger
}

// NewEmitter creates an emitter and registers its persistence handler on the
// runner.
func NewEmitter(store Store, runner *jobs.Runner, log *zap.Logger) *Emitter {
	e := &Emitter{runner: runner, log: log}
	runner.Register(JobTypePersist, func(ctx context.Context, payload []byte) error {
		var event Event
		if err := json.Unmarshal(payload, &persistPayload{&event}); err != nil {
			return err
		}
		return store.Insert(ctx, &event)
	})
	return e
}

// persistPayload round-trips the fields the Event's public JSON omits.
type persistPayload struct {
	*Event
}

func (p *persistPayload) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		*alias
		EntityID    string `json:"entityId"`
		CreatedAtNs int64  `json:"createdAtNs"`
	}{(*alias)(p.Event), p.EntityID, p.CreatedAtNs})
}

func (p *persistPayload) UnmarshalJSON(body []byte) error {
	type alias Event
	aux := struct {
		*alias
		EntityID    string `json:"entityId"`
		CreatedAtNs int64  `json:"createdAtNs"`
	}{alias: (*alias)(p.Event)}
	if err := json.Unmarshal(body, &aux); err != nil {
		return err
	}
	p.Event.EntityID = aux.EntityID
	p.Event.CreatedAtNs = aux.CreatedAtNs
	return nil
}

// Emit schedules the event for persistence. Failures are logged and dropped.
func (e *Emitter) Emit(eventType EventType, userID, entityID string, scope, expenseID *string, payload interface{}) {
	now := time.Now()
	event := &Event{
		Type:        eventType,
		UserID:      userID,
		Scope:       scope,
		ExpenseID:   expenseID,
		EntityID:    entityID,
		CreatedAt:   now,
		CreatedAtNs: now.UnixNano(),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			e.log.Warn("failed to marshal event payload", zap.String("type", string(eventType)), zap.Error(err))
		} else {
			event.Payload = body
		}
	}

	if err := e.runner.Enqueue(JobTypePersist, &persistPayload{event}, jobs.Options{}); err != nil {
		e.log.Warn("failed to enqueue activity event",
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// Service serves the activity feed.
type Service struct {
	store Store
}

// NewService creates a new activity service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// FeedPage is one page of a feed plus the cursor for the next one.
type FeedPage struct {
	Events     []*Event
	HasMore    bool
	NextCursor *string
}

// UserFeed returns one page of the user's activity, newest first
func (s *Service) UserFeed(ctx context.Context, userID string, limit int, after *pagination.Cursor) (*FeedPage, error) {
	limit = pagination.ClampLimit(limit)
	events, err := s.store.ListByUser(ctx, userID, limit, after)
	if err != nil {
		return nil, err
	}
	return buildPage(events, limit), nil
}

// ScopeFeed returns one page of a scope's activity, newest first
func (s *Service) ScopeFeed(ctx context.Context, scope string, limit int, after *pagination.Cursor) (*FeedPage, error) {
	limit = pagination.ClampLimit(limit)
	events, err := s.store.ListByScope(ctx, scope, limit, after)
	if err != nil {
		return nil, err
	}
	return buildPage(events, limit), nil
}

func buildPage(events []*Event, limit int) *FeedPage {
	page := &FeedPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.HasMore = true
		last := page.Events[limit-1]
		cursor := pagination.Encode(pagination.Cursor{
			SortValue: strconv.FormatInt(last.CreatedAtNs, 10),
			ID:        last.ID,
		})
		page.NextCursor = &cursor
	}
	return page
}
