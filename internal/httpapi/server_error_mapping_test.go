package httpapi

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"classd/internal/holder"
	"classd/internal/registry"
	"classd/internal/service"
)

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", service.ErrValidation("empty"), http.StatusBadRequest},
		{"not_found", registry.ErrNotFound("missing"), http.StatusNotFound},
		{"no_active_model", holder.ErrNoActiveModel(), http.StatusServiceUnavailable},
		{"switch_timeout", holder.ErrSwitchTimeout("deep-net", 30*time.Second), http.StatusGatewayTimeout},
		{"inference", service.ErrInference("deep-net", errors.New("shape mismatch")), http.StatusInternalServerError},
		{"http_error", mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot},
		{"generic", errors.New("artifact corrupt"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorStatus(tc.err); got != tc.want {
				t.Fatalf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestPredictNoActiveModelMaps503(t *testing.T) {
	svc := &mockService{predictErr: holder.ErrNoActiveModel()}
	r := NewMux(svc)
	w := postJSON(t, r, "/predict", `{"text":"hello"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwitchUnknownModelMaps404(t *testing.T) {
	svc := &mockService{switchErr: registry.ErrNotFound("missing")}
	r := NewMux(svc)
	w := postJSON(t, r, "/switch", `{"model":"missing"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwitchTimeoutMaps504(t *testing.T) {
	svc := &mockService{switchErr: holder.ErrSwitchTimeout("deep-net", time.Second)}
	r := NewMux(svc)
	w := postJSON(t, r, "/switch", `{"model":"deep-net"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwitchLoadFailureMaps500(t *testing.T) {
	svc := &mockService{switchErr: errors.New("load model deep-net: artifact corrupt")}
	r := NewMux(svc)
	w := postJSON(t, r, "/switch", `{"model":"deep-net"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}
