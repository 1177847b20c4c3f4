package kv

import "errors"

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: key not found")
	// ErrNotInteger is returned by Incr when the stored value is not a number.
	ErrNotInteger = errors.New("kv: value is not an integer")
)
