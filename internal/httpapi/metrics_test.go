package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 200: "200", 404: "404", 503: "503"}
	for in, want := range cases {
		if got := itoa(in); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRoutePatternFallsBackToPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/no/chi/context", nil)
	if got := routePatternOrPath(r); got != "/no/chi/context" {
		t.Fatalf("fallback path = %q", got)
	}
}

func TestStatusRecorderCapturesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: 200}
	sr.WriteHeader(http.StatusNotFound)
	if sr.status != http.StatusNotFound || rec.Code != http.StatusNotFound {
		t.Fatalf("status not captured: %d/%d", sr.status, rec.Code)
	}
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("status=%d", w.Code)
	}
}
