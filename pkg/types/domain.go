package types

// BackendKind identifies the concrete prediction engine behind a model id.
type BackendKind string

const (
	// BackendLinearPipeline is a paired vectorizer + linear classifier bundle.
	BackendLinearPipeline BackendKind = "linear-pipeline"
	// BackendNeuralClassifier is a tokenizer + transformer network exported to ONNX.
	BackendNeuralClassifier BackendKind = "neural-classifier"
)

// SchemeKind selects the result shape a model produces.
type SchemeKind string

const (
	// SchemeSingleLabel means mutually exclusive classes whose scores sum to 1.
	SchemeSingleLabel SchemeKind = "single-label"
	// SchemeMultiLabel means independent per-category scores, each compared
	// against the scheme threshold.
	SchemeMultiLabel SchemeKind = "multi-label"
)

// LabelScheme is the static mapping from backend-internal identifiers to
// human-readable class or category names.
type LabelScheme struct {
	// Result shape of the model.
	// example: single-label
	Kind SchemeKind `json:"kind" example:"single-label"`
	// Ordered class names (single-label) or category names (multi-label).
	// example: ["non-hate","hate"]
	Labels []string `json:"labels"`
	// Decision threshold for multi-label schemes; ignored for single-label.
	// example: 0.5
	Threshold float64 `json:"threshold,omitempty" example:"0.5"`
}

// ModelDescriptor is the static, manifest-sourced view of a model.
// Immutable once registered.
type ModelDescriptor struct {
	// Stable identifier for the model.
	// example: fast-linear
	ID string `json:"id" example:"fast-linear"`
	// Human-friendly name.
	// example: TF-IDF + Logistic Regression
	Name string `json:"name,omitempty" example:"TF-IDF + Logistic Regression"`
	// Short description of the model.
	Description string `json:"description,omitempty"`
	// Backend engine serving this model.
	// example: linear-pipeline
	Backend BackendKind `json:"backend" example:"linear-pipeline"`
	// Absolute path to the primary artifact (bundle JSON or ONNX graph).
	Artifact string `json:"artifact"`
	// Absolute path to the tokenizer vocabulary (neural backends only).
	Tokenizer string `json:"tokenizer,omitempty"`
	// Maximum token sequence length for neural backends (0 = backend default).
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Label scheme resolved against backend outputs at load time.
	Scheme LabelScheme `json:"scheme"`
	// Expected inference speed, display only.
	// example: <10ms
	Speed string `json:"speed,omitempty" example:"<10ms"`
	// Expected accuracy, display only.
	// example: ~82%
	Accuracy string `json:"accuracy,omitempty" example:"~82%"`
}
