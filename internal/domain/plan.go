package domain

import "time"

type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanInFlight  PlanStatus = "in_flight"
	PlanRetrying  PlanStatus = "retrying"
	PlanPublished PlanStatus = "published"
	PlanFailed    PlanStatus = "failed"
)

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanPending:  {PlanInFlight},
	PlanInFlight: {PlanPublished, PlanRetrying, PlanFailed},
	PlanRetrying: {PlanInFlight},
}

func (s PlanStatus) CanTransition(to PlanStatus) bool {
	for _, next := range planTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PlanStatus) Terminal() bool {
	return s == PlanPublished || s == PlanFailed
}

// PublishPlanEntry assigns one content item to a platform and timestamp.
// At most one non-terminal entry may exist per content item.
type PublishPlanEntry struct {
	ID            int64      `db:"id"`
	ContentID     string     `db:"content_id"`
	Platform      string     `db:"platform"`
	TargetAt      time.Time  `db:"target_at"`
	Status        PlanStatus `db:"status"`
	Attempts      int        `db:"attempts"`
	NextAttemptAt *time.Time `db:"next_attempt_at"`
	NativePostID  *string    `db:"native_post_id"`
	LastError     *string    `db:"last_error"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// CadenceWindow holds the per-platform posting constraints. Immutable
// input supplied by configuration.
type CadenceWindow struct {
	MaxPerDay     int             // max posts in any rolling 24h window
	AllowedHours  []int           // hour-of-day slots, ascending
	MinSpacing    time.Duration   // minimum gap between consecutive posts
	BlackoutDates map[string]bool // "2006-01-02" dates with no posting
}

// Blackout reports whether the given day is excluded from scheduling.
func (w CadenceWindow) Blackout(day time.Time) bool {
	return w.BlackoutDates[day.Format("2006-01-02")]
}
