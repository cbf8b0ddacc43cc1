package taskstore

import "errors"

var (
	// ErrValidation is returned for input the store refuses to persist.
	ErrValidation = errors.New("validation failed")
	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt task record")
)
