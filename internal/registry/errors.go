package registry

// notFoundError signals an unknown model id for 404 mapping.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "model not found: " + e.id }

// ErrNotFound returns an error for a model id absent from the registry.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether the error indicates a missing model id.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// duplicateIDError signals a second Register call for an id already present.
type duplicateIDError struct{ id string }

func (e duplicateIDError) Error() string { return "duplicate model id: " + e.id }

// ErrDuplicateID constructs a duplicateIDError.
func ErrDuplicateID(id string) error { return duplicateIDError{id: id} }

// IsDuplicateID reports whether the error indicates a duplicate registration.
func IsDuplicateID(err error) bool {
	_, ok := err.(duplicateIDError)
	return ok
}
