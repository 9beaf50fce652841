package domain

import "time"

// MetricSnapshot aggregates one (platform, day) bucket. Snapshots are
// recomputed from the plan and event logs, never edited incrementally.
type MetricSnapshot struct {
	Platform       string    `db:"platform"`
	Day            time.Time `db:"day"`
	Published      int       `db:"published"`
	Failed         int       `db:"failed"`
	Comments       int       `db:"comments"`
	DirectMessages int       `db:"direct_messages"`
	Responses      int       `db:"responses"`
	Escalations    int       `db:"escalations"`
	EngagementRate float64   `db:"engagement_rate"`
	ComputedAt     time.Time `db:"computed_at"`
}

// BucketKey identifies one snapshot row.
type BucketKey struct {
	Platform string
	Day      time.Time
}
