package model

import (
	"path/filepath"
	"time"
)

// OutcomeStatus is the terminal state of one item.
type OutcomeStatus int

const (
	// StatusSucceeded means the item produced an artifact on disk.
	StatusSucceeded OutcomeStatus = iota

	// StatusFailed means every attempt failed or the batch was cancelled.
	StatusFailed
)

func (s OutcomeStatus) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

// Outcome is the terminal result for one item. Exactly one of ArtifactPath
// (success) or Reason (failure) is meaningful, selected by Status.
type Outcome struct {
	// Index is the item's position in the flat work list.
	Index int

	Item   ItemDescriptor
	Status OutcomeStatus

	// ArtifactPath is the local transcoded file, set on success.
	ArtifactPath string

	// Reason is the last attempt's error message, set on failure.
	Reason string

	// Attempts is the number of attempts performed.
	Attempts int

	FinishedAt time.Time
}

// Success builds a successful outcome.
func Success(index int, item ItemDescriptor, artifactPath string, attempts int) Outcome {
	return Outcome{
		Index:        index,
		Item:         item,
		Status:       StatusSucceeded,
		ArtifactPath: artifactPath,
		Attempts:     attempts,
		FinishedAt:   time.Now(),
	}
}

// Failure builds a failed outcome.
func Failure(index int, item ItemDescriptor, reason string, attempts int) Outcome {
	return Outcome{
		Index:      index,
		Item:       item,
		Status:     StatusFailed,
		Reason:     reason,
		Attempts:   attempts,
		FinishedAt: time.Now(),
	}
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// Title returns the item title.
func (o Outcome) Title() string {
	return o.Item.Title
}

// FileName returns the base name of the artifact, empty for failures.
func (o Outcome) FileName() string {
	if !o.Succeeded() {
		return ""
	}
	return filepath.Base(o.ArtifactPath)
}

// ResolutionFailure records a reference that produced no items, or a
// container entry that could not be made fetchable.
type ResolutionFailure struct {
	Reference string
	Title     string
	Reason    string
}

// BatchResult aggregates all outcomes of one batch.
//
// Successes and Failures are in completion order. ResolutionFailures are in
// input order.
type BatchResult struct {
	Successes          []Outcome
	Failures           []Outcome
	ResolutionFailures []ResolutionFailure
}

// Add files an outcome under Successes or Failures.
func (r *BatchResult) Add(o Outcome) {
	if o.Succeeded() {
		r.Successes = append(r.Successes, o)
	} else {
		r.Failures = append(r.Failures, o)
	}
}

// Items returns the number of items that reached the scheduler.
func (r *BatchResult) Items() int {
	return len(r.Successes) + len(r.Failures)
}

// HasFailures reports whether anything in the batch went wrong.
func (r *BatchResult) HasFailures() bool {
	return len(r.Failures) > 0 || len(r.ResolutionFailures) > 0
}
