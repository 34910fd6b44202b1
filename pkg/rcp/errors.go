package rcp

import (
	"fmt"
	"strings"
)

// ValidationError reports why a policy failed load-time validation.
type ValidationError struct {
	// PolicyID identifies the offending policy. May be empty when the
	// policy has no ID yet.
	PolicyID string

	// Errors lists every violation found, not just the first.
	Errors []string
}

func (e *ValidationError) Error() string {
	id := e.PolicyID
	if id == "" {
		id = "(no id)"
	}
	return fmt.Sprintf("policy %s invalid: %s", id, strings.Join(e.Errors, "; "))
}
