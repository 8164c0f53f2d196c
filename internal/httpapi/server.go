package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Predict(ctx context.Context, text string) (types.PredictResponse, error)
	ListModels() []types.ModelStatus
	Switch(ctx context.Context, id string) (types.SwitchResponse, error)
	Health() types.HealthResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Post("/predict", handlePredict(svc))
	r.Get("/models", handleModels(svc))
	r.Post("/switch", handleSwitch(svc))
	r.Get("/health", handleHealth(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handlePredict classifies the posted text with the active model.
//
// @Summary      Classify text
// @Accept       json
// @Produce      json
// @Param        request body types.PredictRequest true "text to classify"
// @Success      200 {object} types.PredictResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /predict [post]
func handlePredict(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PredictRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}

		// Join server base context with request context so shutdown cancels
		// in-flight work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if predictTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(predictTimeout)*time.Second)
			defer tcancel()
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		resp, err := svc.Predict(ctx, req.Text)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				// Client disconnect or shutdown, nothing useful to write.
				return
			}
			status := errorStatus(err)
			writeJSONError(w, status, err.Error())
			logRequestEnd(r, lvl, "predict", status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logRequestEnd(r, lvl, "predict", http.StatusOK, start, nil)
	}
}

// handleModels lists every registered model with its lifecycle state.
//
// @Summary      List models
// @Produce      json
// @Success      200 {object} types.ModelsResponse
// @Router       /models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// handleSwitch makes another registered model active.
//
// @Summary      Switch active model
// @Accept       json
// @Produce      json
// @Param        request body types.SwitchRequest true "target model id"
// @Success      200 {object} types.SwitchResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      504 {object} types.ErrorResponse
// @Router       /switch [post]
func handleSwitch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SwitchRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}

		// The switch deadline belongs to the holder, not the request; a
		// disconnecting client must not abort a switch in progress.
		ctx, cancel := joinContexts(serverBaseCtx, context.Background())
		defer cancel()

		start := time.Now()
		lvl := requestLogLevel(r)
		resp, err := svc.Switch(ctx, req.Model)
		if err != nil {
			status := errorStatus(err)
			writeJSONError(w, status, err.Error())
			logRequestEnd(r, lvl, "switch", status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logRequestEnd(r, lvl, "switch", http.StatusOK, start, nil)
	}
}

// handleHealth reports readiness, the active model and the warm cache.
//
// @Summary      Health and active model info
// @Produce      json
// @Success      200 {object} types.HealthResponse
// @Router       /health [get]
func handleHealth(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	}
}

// decodeJSONBody enforces content type and body size before decoding into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// An exceeded MaxBytesReader also lands here; 400 avoids leaking
		// size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func logRequestEnd(r *http.Request, lvl LogLevel, op string, status int, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Str("op", op).Int("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Err(err).Msg(op + " end")
		return
	}
	log.Printf("%s end status=%d dur=%s err=%v", op, status, time.Since(start), err)
}
