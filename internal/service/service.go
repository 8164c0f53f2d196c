// Package service validates prediction input, delegates to the active model
// snapshot and normalizes raw backend output into the common result shape.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"classd/internal/holder"
	"classd/pkg/types"
)

// defaultMaxTextLen bounds input size when the config leaves it unset.
const defaultMaxTextLen = 5000

// Config carries service tunables.
type Config struct {
	Logger     zerolog.Logger
	Holder     *holder.Holder
	MaxTextLen int
}

// Service is the call-level inference surface exposed to transport layers.
type Service struct {
	log        zerolog.Logger
	holder     *holder.Holder
	maxTextLen int
}

func New(cfg Config) *Service {
	s := &Service{log: cfg.Logger, holder: cfg.Holder, maxTextLen: cfg.MaxTextLen}
	if s.maxTextLen <= 0 {
		s.maxTextLen = defaultMaxTextLen
	}
	return s
}

// Predict classifies text with the active model. The active reference is
// captured exactly once; a concurrent switch never affects this call.
func (s *Service) Predict(ctx context.Context, text string) (types.PredictResponse, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.PredictResponse{}, ErrValidation("text must not be empty or whitespace-only")
	}
	if len(trimmed) > s.maxTextLen {
		return types.PredictResponse{}, ErrValidation(fmt.Sprintf("text exceeds maximum length of %d characters", s.maxTextLen))
	}

	model, release, err := s.holder.Acquire()
	if err != nil {
		return types.PredictResponse{}, err
	}
	defer release()

	start := time.Now()
	raw, err := model.Predict(ctx, trimmed)
	elapsed := time.Since(start)
	if err != nil {
		predictionsTotal.WithLabelValues(model.ID(), "error").Inc()
		return types.PredictResponse{}, ErrInference(model.ID(), err)
	}
	predictionsTotal.WithLabelValues(model.ID(), "ok").Inc()
	predictionDuration.WithLabelValues(model.ID()).Observe(elapsed.Seconds())

	resp := normalize(model.ID(), model.Scheme(), raw.Scores)
	resp.LatencyMS = float64(elapsed.Microseconds()) / 1000.0
	s.log.Debug().Str("model", model.ID()).Dur("dur", elapsed).Msg("prediction served")
	return resp, nil
}

// normalize maps raw per-label scores into the common result shape.
func normalize(modelID string, scheme types.LabelScheme, scores []float64) types.PredictResponse {
	resp := types.PredictResponse{
		ModelID: modelID,
		Scores:  make([]types.LabelScore, len(scheme.Labels)),
	}
	for i, label := range scheme.Labels {
		resp.Scores[i] = types.LabelScore{Label: label, Score: scores[i]}
	}
	if scheme.Kind == types.SchemeMultiLabel {
		flagged := make([]string, 0, len(scheme.Labels))
		for i, label := range scheme.Labels {
			if scores[i] > scheme.Threshold {
				flagged = append(flagged, label)
			}
		}
		resp.FlaggedCategories = flagged
		return resp
	}
	best := 0
	for i := range scores {
		if scores[i] > scores[best] {
			best = i
		}
	}
	resp.PredictedLabel = scheme.Labels[best]
	resp.Confidence = scores[best]
	return resp
}

// ListModels returns the catalog annotated with cache and active flags.
func (s *Service) ListModels() []types.ModelStatus {
	return s.holder.ListModels()
}

// Switch makes another registered model active.
func (s *Service) Switch(ctx context.Context, id string) (types.SwitchResponse, error) {
	res, err := s.holder.Switch(ctx, id)
	if err != nil {
		return types.SwitchResponse{}, err
	}
	return types.SwitchResponse{
		PreviousActiveID: res.Previous,
		NewActiveID:      res.Current,
		OpID:             res.OpID,
	}, nil
}

// Health reports the read-only registry/cache/active view.
func (s *Service) Health() types.HealthResponse {
	resp := types.HealthResponse{
		Ready:         s.holder.Ready(),
		ActiveModelID: s.holder.ActiveID(),
		CachedIDs:     s.holder.CachedIDs(),
	}
	if scheme, ok := s.holder.ActiveScheme(); ok {
		resp.ActiveScheme = &scheme
	}
	return resp
}

// Ready reports whether at least one model has completed loading.
func (s *Service) Ready() bool { return s.holder.Ready() }
