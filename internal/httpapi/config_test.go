package httpapi

import "testing"

func TestSetMaxBodyBytes(t *testing.T) {
	orig := maxBodyBytes
	defer SetMaxBodyBytes(orig)

	SetMaxBodyBytes(2048)
	if maxBodyBytes != 2048 {
		t.Fatalf("maxBodyBytes=%d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("zero must restore the default, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(-5)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("negative must restore the default, got %d", maxBodyBytes)
	}
}

func TestSetPredictTimeoutSeconds(t *testing.T) {
	defer SetPredictTimeoutSeconds(0)

	SetPredictTimeoutSeconds(30)
	if predictTimeout != 30 {
		t.Fatalf("predictTimeout=%d", predictTimeout)
	}
	SetPredictTimeoutSeconds(-1)
	if predictTimeout != 0 {
		t.Fatalf("negative must disable, got %d", predictTimeout)
	}
}

func TestSetCORSOptionsCopiesSlices(t *testing.T) {
	origins := []string{"https://a.example"}
	SetCORSOptions(true, origins, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)

	origins[0] = "mutated"
	if corsAllowedOrigins[0] != "https://a.example" {
		t.Fatalf("origins must be copied, got %q", corsAllowedOrigins[0])
	}
	if !corsEnabled {
		t.Fatalf("corsEnabled not set")
	}
}
