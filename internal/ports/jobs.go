package ports

import "context"

// RecalcJob asks for one recalculation of a recommendation.
type RecalcJob struct {
	RecommendationID string
	TriggerSource    string
}

// Trigger hands recalculation off to the background. It never blocks on the
// recalculation itself and never reports its outcome.
type Trigger interface {
	Trigger(recommendationID, triggerSource string)
}

// Recalculator performs one recalculation synchronously.
type Recalculator interface {
	Recalculate(ctx context.Context, recommendationID, triggerSource string) error
}
