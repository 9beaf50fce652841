package generator

import (
	"strings"

	"socialflow/internal/domain"
)

// pillarHashtags is a fixed per-pillar pool; deterministic on purpose so
// generated drafts are reproducible apart from the model output itself.
var pillarHashtags = map[domain.Pillar][]string{
	domain.PillarEducational:   {"#TipsAndTricks", "#DidYouKnow", "#LearnSomethingNew"},
	domain.PillarInspirational: {"#Motivation", "#MondayMindset"},
	domain.PillarPromotional:   {"#NewLaunch", "#LimitedOffer"},
	domain.PillarEngagement:    {"#Community", "#TellUs"},
}

func appendHashtags(body string, pillar domain.Pillar) string {
	tags := pillarHashtags[pillar]
	if len(tags) == 0 {
		return body
	}
	return body + "\n\n" + strings.Join(tags, " ")
}
