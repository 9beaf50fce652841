package domain

import "time"

type EventKind string

const (
	KindComment       EventKind = "comment"
	KindDirectMessage EventKind = "direct_message"
)

type EventStatus string

const (
	EventNew        EventStatus = "new"
	EventClassified EventStatus = "classified"
	EventResponded  EventStatus = "responded"
	EventIgnored    EventStatus = "ignored"
	EventEscalated  EventStatus = "escalated"
)

var eventTransitions = map[EventStatus][]EventStatus{
	EventNew:        {EventClassified, EventIgnored, EventEscalated},
	EventClassified: {EventResponded, EventEscalated},
}

func (s EventStatus) CanTransition(to EventStatus) bool {
	for _, next := range eventTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s EventStatus) Terminal() bool {
	return s == EventResponded || s == EventIgnored || s == EventEscalated
}

// EngagementEvent is one inbound audience interaction. NativeID is the
// platform-assigned identifier and the dedup key: the event log holds at
// most one record per (platform, native id), and records are never deleted.
type EngagementEvent struct {
	ID         int64       `db:"id"`
	Platform   string      `db:"platform"`
	NativeID   string      `db:"native_id"`
	Kind       EventKind   `db:"kind"`
	Author     string      `db:"author"`
	Body       string      `db:"body"`
	ObservedAt time.Time   `db:"observed_at"`
	Status     EventStatus `db:"status"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}
