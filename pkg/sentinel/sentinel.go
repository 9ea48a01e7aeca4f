// Package sentinel holds the errors infrastructure layers return to report
// factual resource states. Stores wrap these so services can branch with
// errors.Is and translate them into domain errors for callers.
package sentinel

import "errors"

var (
	// ErrNotFound: the entity does not exist in the store or registry.
	ErrNotFound = errors.New("not found")
	// ErrConflict: another writer got there first.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the backing resource is temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)
