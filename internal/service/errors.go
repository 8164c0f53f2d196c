package service

import "fmt"

// validationError signals malformed input text. Client-caused, no side effects.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validationError.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err indicates rejected input.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// inferenceError signals a backend failure during one prediction. It carries
// the offending model id and does not invalidate the active handle.
type inferenceError struct {
	modelID string
	err     error
}

func (e inferenceError) Error() string {
	return fmt.Sprintf("inference failed on model %s: %v", e.modelID, e.err)
}
func (e inferenceError) Unwrap() error { return e.err }

// ErrInference wraps a backend failure with the producing model's id.
func ErrInference(modelID string, err error) error {
	return inferenceError{modelID: modelID, err: err}
}

// IsInference reports whether err indicates a backend prediction failure.
func IsInference(err error) bool {
	_, ok := err.(inferenceError)
	return ok
}
