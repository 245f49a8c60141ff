// Package errors defines the sentinel errors shared across the engagement
// service. Specific errors wrap a category sentinel so callers can match
// either the exact condition or the whole class with errors.Is.
package errors

import (
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound            = fmt.Errorf("not found")
	ErrInvalidState        = fmt.Errorf("invalid state")
	ErrNotAuthorized       = fmt.Errorf("not authorized")
	ErrInvalidInput        = fmt.Errorf("invalid input")
	ErrUnresolvedReference = fmt.Errorf("unresolved reference")
	ErrPublishFailed       = fmt.Errorf("publish failed")
	ErrDuplicateName       = fmt.Errorf("duplicate name")
)

var (
	ErrCompanyNotFound = fmt.Errorf("%w: company", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("%w: user", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("%w: project request", ErrNotFound)
	ErrProjectNotFound = fmt.Errorf("%w: project", ErrNotFound)

	// ErrInvalidCounterparty: a request names a company id that does not
	// resolve to a registered company.
	ErrInvalidCounterparty = fmt.Errorf("%w: unknown counterparty company", ErrInvalidInput)
	// ErrUnverifiedCounterparty: requests cannot be exchanged with an
	// unverified company.
	ErrUnverifiedCounterparty = fmt.Errorf("%w: counterparty not verified", ErrInvalidState)
	// ErrRequestAlreadyProcessed: the request already reached a terminal
	// state; repeat decisions are rejected, not silently accepted.
	ErrRequestAlreadyProcessed = fmt.Errorf("%w: request already processed", ErrInvalidState)
	// ErrAlreadyMarkedBySide: this side already confirmed completion.
	ErrAlreadyMarkedBySide = fmt.Errorf("%w: completion already confirmed by this side", ErrInvalidState)
	// ErrProjectNotCompleted: reviews require a completed project.
	ErrProjectNotCompleted = fmt.Errorf("%w: project not completed", ErrInvalidState)
	// ErrCompanyAlreadyVerified: verification flips exactly once.
	ErrCompanyAlreadyVerified = fmt.Errorf("%w: company already verified", ErrInvalidState)
	// ErrDuplicateReview: at most one review per (project, user).
	ErrDuplicateReview = fmt.Errorf("%w: duplicate review", ErrInvalidState)

	// ErrNotAParticipant: the acting user's company is neither side of the
	// project.
	ErrNotAParticipant = fmt.Errorf("%w: user is not a participant", ErrNotAuthorized)

	// ErrUnresolvedCounterparty: neither counterparty name matches a
	// registered company; the caller must create the missing company or
	// reject the record.
	ErrUnresolvedCounterparty = fmt.Errorf("%w: counterparty", ErrUnresolvedReference)
)
