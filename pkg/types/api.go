package types

// PredictRequest represents a prediction request payload.
type PredictRequest struct {
	// Required text to classify.
	// example: great service, would come again
	Text string `json:"text" example:"great service, would come again"`
}

// LabelScore is one row of a full score table.
type LabelScore struct {
	// Class or category name.
	// example: hate
	Label string `json:"label" example:"hate"`
	// Score in [0,1].
	// example: 0.07
	Score float64 `json:"score" example:"0.07"`
}

// PredictResponse is the normalized prediction result across all backends.
// Single-label models set PredictedLabel and Confidence; multi-label models set
// FlaggedCategories. Scores always carries the full table in scheme order.
type PredictResponse struct {
	// ID of the model that produced the result.
	// example: fast-linear
	ModelID string `json:"model_id" example:"fast-linear"`
	// Winning class for single-label models.
	// example: non-hate
	PredictedLabel string `json:"predicted_label,omitempty" example:"non-hate"`
	// Score of the winning class for single-label models.
	// example: 0.93
	Confidence float64 `json:"confidence,omitempty" example:"0.93"`
	// Categories whose score exceeded the scheme threshold (multi-label only).
	// Never null for multi-label models, even when nothing is flagged.
	FlaggedCategories []string `json:"flagged_categories,omitempty"`
	// Full per-label score table in scheme order.
	Scores []LabelScore `json:"scores"`
	// Wall-clock inference duration in milliseconds.
	// example: 4.2
	LatencyMS float64 `json:"latency_ms" example:"4.2"`
}

// ModelStatus is one entry of GET /models.
type ModelStatus struct {
	// Stable identifier for the model.
	// example: fast-linear
	ID string `json:"id" example:"fast-linear"`
	// Human-friendly name.
	Name string `json:"name,omitempty"`
	// Backend engine serving this model.
	// example: linear-pipeline
	Backend BackendKind `json:"backend" example:"linear-pipeline"`
	// Label scheme of the model.
	Scheme LabelScheme `json:"scheme"`
	// Lifecycle state (registered, loading, loaded, active, evicted, load_failed).
	// example: active
	State string `json:"state" example:"active"`
	// True when a runtime instance is resident in the warm cache.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// True when this model is serving traffic.
	// example: true
	Active bool `json:"active" example:"true"`
}

// ModelsResponse wraps the list returned by GET /models.
type ModelsResponse struct {
	// One entry per registered model id.
	Models []ModelStatus `json:"models"`
}

// SwitchRequest asks the server to make another registered model active.
type SwitchRequest struct {
	// Target model id.
	// example: deep-net
	Model string `json:"model" example:"deep-net"`
}

// SwitchResponse reports the outcome of a completed switch.
type SwitchResponse struct {
	// Model that was active before the switch (empty on first activation).
	// example: fast-linear
	PreviousActiveID string `json:"previous_active_id,omitempty" example:"fast-linear"`
	// Model now serving traffic.
	// example: deep-net
	NewActiveID string `json:"new_active_id" example:"deep-net"`
	// Operation id for correlating switch events in logs.
	OpID string `json:"op_id,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// True once at least one model has completed loading.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// ID of the model serving traffic, empty before first load.
	// example: fast-linear
	ActiveModelID string `json:"active_model_id,omitempty" example:"fast-linear"`
	// Label scheme of the active model.
	ActiveScheme *LabelScheme `json:"active_label_scheme,omitempty"`
	// Model ids resident in the warm cache.
	CachedIDs []string `json:"cached_ids"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: missing
	Error string `json:"error" example:"model not found: missing"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
