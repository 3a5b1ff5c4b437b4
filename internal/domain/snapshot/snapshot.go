// Package snapshot defines stored schedule computations.
package snapshot

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
)

// MaxNameLength bounds the optional user-supplied snapshot name.
const MaxNameLength = 200

// Snapshot is a persisted schedule together with the input it was
// computed from.
type Snapshot struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	CreatedAt    time.Time          `json:"created_at"`
	ProjectStart int                `json:"t0"`
	Input        []schedule.RawTask `json:"input_tasks"`
	Result       *schedule.Result   `json:"result"`
}

// Summary is the listing view of a snapshot.
type Summary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	ProjectStart    int       `json:"t0"`
	TasksCount      int       `json:"tasks_count"`
	ProjectDuration int       `json:"project_duration"`
}

// New builds a snapshot with a fresh ID and the current UTC time.
func New(name string, t0 int, input []schedule.RawTask, res *schedule.Result) *Snapshot {
	return &Snapshot{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		CreatedAt:    time.Now().UTC(),
		ProjectStart: t0,
		Input:        input,
		Result:       res,
	}
}

// Summary returns the listing view of s.
func (s *Snapshot) Summary() Summary {
	sum := Summary{
		ID:           s.ID,
		Name:         s.Name,
		CreatedAt:    s.CreatedAt,
		ProjectStart: s.ProjectStart,
		TasksCount:   len(s.Input),
	}
	if s.Result != nil {
		sum.ProjectDuration = s.Result.Duration()
	}
	return sum
}

// Validate checks a snapshot before it is stored.
func (s *Snapshot) Validate() error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	if len(s.Name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", domain.ErrValidation, MaxNameLength)
	}
	if s.Result == nil {
		return fmt.Errorf("%w: result is required", domain.ErrValidation)
	}
	return nil
}

// ValidateID reports whether id is a well-formed snapshot ID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid snapshot id %q", domain.ErrValidation, id)
	}
	return nil
}

// SortNewestFirst orders summaries by creation time, newest first, with
// the ID as tie-breaker.
func SortNewestFirst(list []Summary) {
	slices.SortFunc(list, func(a, b Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
