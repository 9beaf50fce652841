package buffer

import (
	"time"

	"socialflow/internal/domain"
)

// createUpdateRequest is the wire form of a publish call.
type createUpdateRequest struct {
	Profile string `json:"profile"`
	Text    string `json:"text"`
	Now     bool   `json:"now"`
}

type createUpdateResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type interactionsResponse struct {
	Interactions []interaction `json:"interactions"`
}

type interaction struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // "comment" or "message"
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

type replyRequest struct {
	Text string `json:"text"`
}

func (s *Adapter) transform(items []interaction) []domain.EngagementEvent {
	events := make([]domain.EngagementEvent, 0, len(items))
	for _, in := range items {
		kind := domain.KindComment
		if in.Type == "message" {
			kind = domain.KindDirectMessage
		}
		events = append(events, domain.EngagementEvent{
			Platform:   s.platform,
			NativeID:   in.ID,
			Kind:       kind,
			Author:     in.Author,
			Body:       in.Text,
			ObservedAt: time.Unix(in.CreatedAt, 0).UTC(),
			Status:     domain.EventNew,
		})
	}
	return events
}
