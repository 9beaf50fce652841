package domain

import (
	"fmt"
	"time"
)

// Pillar is the thematic category used to balance the content mix.
type Pillar string

const (
	PillarEducational   Pillar = "educational"
	PillarInspirational Pillar = "inspirational"
	PillarPromotional   Pillar = "promotional"
	PillarEngagement    Pillar = "engagement"
)

// Pillars lists all pillars in a fixed order. The scheduling engine relies
// on this order for deterministic tie-breaking.
var Pillars = []Pillar{
	PillarEducational,
	PillarInspirational,
	PillarPromotional,
	PillarEngagement,
}

func ParsePillar(s string) (Pillar, error) {
	for _, p := range Pillars {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pillar %q", s)
}

type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentScheduled ContentStatus = "scheduled"
	ContentPublished ContentStatus = "published"
	ContentFailed    ContentStatus = "failed"
)

// contentTransitions defines the allowed forward moves. Published and
// Failed are terminal.
var contentTransitions = map[ContentStatus][]ContentStatus{
	ContentDraft:     {ContentScheduled},
	ContentScheduled: {ContentPublished, ContentFailed},
}

func (s ContentStatus) CanTransition(to ContentStatus) bool {
	for _, next := range contentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ContentItem struct {
	ID          string        `db:"id"`
	Body        string        `db:"body"`
	Pillar      Pillar        `db:"pillar"`
	Platform    *string       `db:"platform"`
	Status      ContentStatus `db:"status"`
	ScheduledAt *time.Time    `db:"scheduled_at"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}
