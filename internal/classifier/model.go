package classifier

import (
	"context"

	"classd/pkg/types"
)

// RuntimeModel is the uniform prediction abstraction over all backends.
// Implementations resolve backend-internal numeric label ids against the
// descriptor's label names at load time; Prediction scores are always ordered
// by the scheme's label list.
type RuntimeModel interface {
	// ID returns the descriptor id this model was loaded from.
	ID() string
	// Scheme returns the label scheme the scores are ordered by.
	Scheme() types.LabelScheme
	// Predict scores the given text. Scores are probabilities: for
	// single-label schemes they sum to 1, for multi-label schemes each is
	// an independent value in [0,1].
	Predict(ctx context.Context, text string) (Prediction, error)
	// Close releases backend resources. Safe to call once.
	Close() error
}

// Prediction is the raw backend output, one score per scheme label.
type Prediction struct {
	Scores []float64
}
