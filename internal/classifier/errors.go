package classifier

import "fmt"

// loadError signals a failed artifact load: missing or corrupt artifact, or a
// schema mismatch between manifest and artifact.
type loadError struct {
	id  string
	err error
}

func (e loadError) Error() string { return fmt.Sprintf("load model %s: %v", e.id, e.err) }
func (e loadError) Unwrap() error { return e.err }

// errLoad wraps err as a load failure for model id.
func errLoad(id string, err error) error { return loadError{id: id, err: err} }

func errLoadf(id, format string, args ...any) error {
	return loadError{id: id, err: fmt.Errorf(format, args...)}
}

// IsLoadError reports whether err indicates a failed model load.
func IsLoadError(err error) bool {
	_, ok := err.(loadError)
	return ok
}
