package storage

import "errors"

// NotFoundError is returned when a key doesn't exist in the store.
type NotFoundError struct {
	Collection string
	Key        string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return "record not found"
	}

	return "record not found: " + e.Collection + "/" + e.Key
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
