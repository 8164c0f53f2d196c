package holder

import "time"

// noActiveModelError signals that no model has been activated yet.
type noActiveModelError struct{}

func (noActiveModelError) Error() string { return "no active model" }

// ErrNoActiveModel constructs a noActiveModelError.
func ErrNoActiveModel() error { return noActiveModelError{} }

// IsNoActiveModel reports whether err indicates the holder has no active model.
func IsNoActiveModel(err error) bool {
	_, ok := err.(noActiveModelError)
	return ok
}

// switchTimeoutError signals that a switch target did not finish loading
// within the configured bound. The previously active model is untouched.
type switchTimeoutError struct {
	id      string
	timeout time.Duration
}

func (e switchTimeoutError) Error() string {
	return "switch to " + e.id + " timed out after " + e.timeout.String()
}

// ErrSwitchTimeout constructs a switchTimeoutError.
func ErrSwitchTimeout(id string, timeout time.Duration) error {
	return switchTimeoutError{id: id, timeout: timeout}
}

// IsSwitchTimeout reports whether err indicates a timed-out switch.
func IsSwitchTimeout(err error) bool {
	_, ok := err.(switchTimeoutError)
	return ok
}
