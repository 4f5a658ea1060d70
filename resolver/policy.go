package resolver

import (
	"fmt"
	"strings"
)

// Policy selects how a caller rides out a failover window.
type Policy string

const (
	// PolicyFailFast surfaces the first resolution outcome as is.
	PolicyFailFast Policy = "fail-fast"

	// PolicyPoll retries while the topic has zero or several live candidates.
	PolicyPoll Policy = "poll"
)

// ParsePolicy maps a policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case PolicyFailFast, "failfast", "":
		return PolicyFailFast, nil
	case PolicyPoll:
		return PolicyPoll, nil
	default:
		return "", fmt.Errorf("unknown active host policy %q", name)
	}
}

// NewFinder composes the policy on top of a single-shot resolver.
func NewFinder(policy Policy, resolver Finder, cfg PollConfig) (Finder, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	switch policy {
	case PolicyFailFast:
		return resolver, nil
	case PolicyPoll:
		return NewPoller(resolver, cfg), nil
	default:
		return nil, fmt.Errorf("unknown active host policy %q", policy)
	}
}
