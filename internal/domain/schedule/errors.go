package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/PertForge/internal/domain"
)

var (
	ErrInvalidTask         = errors.New("invalid task")
	ErrUnknownPredecessor  = errors.New("unknown predecessor")
	ErrCycleDetected       = errors.New("cycle detected")
	ErrInvalidProjectStart = errors.New("project start out of range")
)

// Error kinds reported to callers alongside the message.
const (
	KindInvalidTask        = "invalid_task"
	KindUnknownPredecessor = "unknown_predecessor"
	KindCycleDetected      = "cycle_detected"
	KindInvalidStart       = "invalid_project_start"
)

// InvalidTaskError reports a task record that cannot be normalized.
type InvalidTaskError struct {
	Index  int    // position in the input
	Task   string // normalized name, empty when the name itself is missing
	Reason string
}

func (e *InvalidTaskError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("%s at position %d: %s", ErrInvalidTask, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", ErrInvalidTask, e.Task, e.Reason)
}

func (e *InvalidTaskError) Unwrap() []error { return []error{ErrInvalidTask, domain.ErrValidation} }

// PredecessorRef names a predecessor and the task that references it.
type PredecessorRef struct {
	Predecessor string `json:"predecessor"`
	Task        string `json:"task"`
}

// UnknownPredecessorError lists every predecessor reference that has no
// matching task.
type UnknownPredecessorError struct {
	Refs []PredecessorRef
}

func (e *UnknownPredecessorError) Error() string {
	parts := make([]string, len(e.Refs))
	for i, r := range e.Refs {
		parts[i] = fmt.Sprintf("%q referenced by %q", r.Predecessor, r.Task)
	}
	return fmt.Sprintf("%s: %s", ErrUnknownPredecessor, strings.Join(parts, ", "))
}

func (e *UnknownPredecessorError) Unwrap() []error {
	return []error{ErrUnknownPredecessor, domain.ErrValidation}
}

// CycleDetectedError lists every task that could not be ordered.
type CycleDetectedError struct {
	Tasks []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("%s: tasks not ordered: %s", ErrCycleDetected, strings.Join(e.Tasks, ", "))
}

func (e *CycleDetectedError) Unwrap() []error { return []error{ErrCycleDetected, domain.ErrValidation} }

// Kind classifies err into one of the Kind* constants, or "" when err does
// not originate from this package.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTask):
		return KindInvalidTask
	case errors.Is(err, ErrUnknownPredecessor):
		return KindUnknownPredecessor
	case errors.Is(err, ErrCycleDetected):
		return KindCycleDetected
	case errors.Is(err, ErrInvalidProjectStart):
		return KindInvalidStart
	}
	return ""
}

// Details returns the offending identifiers carried by err, if any.
func Details(err error) any {
	var ip *UnknownPredecessorError
	if errors.As(err, &ip) {
		return ip.Refs
	}
	var cy *CycleDetectedError
	if errors.As(err, &cy) {
		return cy.Tasks
	}
	var it *InvalidTaskError
	if errors.As(err, &it) {
		return map[string]any{"index": it.Index, "task": it.Task, "reason": it.Reason}
	}
	return nil
}
