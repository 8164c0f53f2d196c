package classifier

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"classd/pkg/types"
)

// Loader deserializes model artifacts into RuntimeModels. One loader serves
// all backend kinds; the descriptor selects the strategy.
type Loader struct {
	log      zerolog.Logger
	onnxLib  string
	maxToken int
}

// LoaderConfig carries loader tunables.
type LoaderConfig struct {
	Logger zerolog.Logger
	// OnnxLibraryPath points at the onnxruntime shared library. Empty means
	// the runtime default search path.
	OnnxLibraryPath string
	// DefaultMaxTokens is used for neural backends whose descriptor omits
	// max_tokens.
	DefaultMaxTokens int
}

const defaultMaxTokens = 256

func NewLoader(cfg LoaderConfig) *Loader {
	l := &Loader{log: cfg.Logger, onnxLib: cfg.OnnxLibraryPath, maxToken: cfg.DefaultMaxTokens}
	if l.maxToken <= 0 {
		l.maxToken = defaultMaxTokens
	}
	return l
}

// Load builds a RuntimeModel for the descriptor. Loading is all-or-nothing:
// any failure discards partial state and returns a load error; no half-built
// model is ever returned.
func (l *Loader) Load(ctx context.Context, d types.ModelDescriptor) (RuntimeModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.log.Debug().Str("model", d.ID).Str("backend", string(d.Backend)).Msg("loading model")
	switch d.Backend {
	case types.BackendLinearPipeline:
		return l.loadLinear(ctx, d)
	case types.BackendNeuralClassifier:
		return l.loadNeural(ctx, d)
	default:
		return nil, errLoadf(d.ID, "unknown backend kind %q", d.Backend)
	}
}

// checkSchemeSize enforces the invariant that the runtime label mapping
// exactly matches the descriptor's label scheme.
func checkSchemeSize(d types.ModelDescriptor, outputs int) error {
	if outputs != len(d.Scheme.Labels) {
		return errLoadf(d.ID, "schema mismatch: artifact produces %d outputs, scheme names %d labels", outputs, len(d.Scheme.Labels))
	}
	return nil
}

func softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}
