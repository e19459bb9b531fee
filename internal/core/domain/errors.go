package domain

import "errors"

var (
	// ErrUnauthorized marks an authentication or grant failure from the playback service.
	ErrUnauthorized = errors.New("domain: unauthorized")
	// ErrNotFound is returned when a lookup has no matching entry.
	ErrNotFound = errors.New("domain: not found")
	// ErrEmptyResponse is returned when a service answered without usable data.
	ErrEmptyResponse = errors.New("domain: empty response")
)
