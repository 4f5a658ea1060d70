package metrics

import (
	"context"
	"errors"

	"github.com/getpup/pupsourcing-hostselect"
)

// Outcome labels the result of an operation.
type Outcome string

const (
	// OutcomeSuccess means a host was returned.
	OutcomeSuccess Outcome = "success"

	// OutcomeNoHosts means the topic had no enabled records.
	OutcomeNoHosts Outcome = "no_hosts"

	// OutcomeNoActiveHost means no live host was found.
	OutcomeNoActiveHost Outcome = "no_active_host"

	// OutcomeAmbiguous means several live hosts were equally eligible.
	OutcomeAmbiguous Outcome = "ambiguous"

	// OutcomeRegistryError means the registry could not be reached.
	OutcomeRegistryError Outcome = "registry_error"

	// OutcomeCanceled means the caller's context ended first.
	OutcomeCanceled Outcome = "canceled"

	// OutcomeError covers every other failure.
	OutcomeError Outcome = "error"
)

// Classify maps an operation error to its outcome label.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, hostselect.ErrNoHostsRegistered):
		return OutcomeNoHosts
	case errors.Is(err, hostselect.ErrAmbiguousActiveHost):
		return OutcomeAmbiguous
	case errors.Is(err, hostselect.ErrNoActiveHost):
		return OutcomeNoActiveHost
	case errors.Is(err, hostselect.ErrRegistryUnavailable):
		return OutcomeRegistryError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
