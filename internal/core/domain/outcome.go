package domain

import "time"

type OutcomeStatus string

const (
	StatusPending   OutcomeStatus = "PENDING"
	StatusUnchanged OutcomeStatus = "UNCHANGED"
	StatusCreated   OutcomeStatus = "CREATED"
	StatusUpdated   OutcomeStatus = "UPDATED"
	StatusFailed    OutcomeStatus = "FAILED"
	StatusCancelled OutcomeStatus = "CANCELLED"
)

// Terminal reports whether s is a final status for the run. Pending is the
// only non-terminal status.
func (s OutcomeStatus) Terminal() bool {
	switch s {
	case StatusUnchanged, StatusCreated, StatusUpdated, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type AttributeDiff struct {
	AttributeName string
	DeclaredValue any
	ObservedValue any
	Details       string
}

// Outcome is the terminal result of one declaration for one run.
// The engine writes each outcome exactly once.
type Outcome struct {
	DeclarationID string
	Kind          ResourceKind
	Status        OutcomeStatus
	// Planned marks a Created/Updated outcome produced under dry-run,
	// where the mutation was reported but not issued.
	Planned     bool
	Differences []AttributeDiff
	Error       error
	Duration    time.Duration
}
