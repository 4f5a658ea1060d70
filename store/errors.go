package store

import "errors"

var (
	// ErrServiceNotFound indicates no record exists for the topic and host.
	ErrServiceNotFound = errors.New("service not found")
)
