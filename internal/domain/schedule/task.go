package schedule

import (
	"errors"
	"math"
	"strings"
)

// MaxDuration bounds a single task duration after rounding.
const MaxDuration = 1_000_000

// RawTask is a task record as supplied by a caller, before normalization.
// Names are trimmed and upper-cased and must not contain whitespace, commas
// or semicolons, since those separate names in a predecessor entry.
// Duration takes precedence; when it is zero the three-point estimate
// (Optimistic, MostLikely, Pessimistic) is used instead.
type RawTask struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	Duration     float64  `json:"duration,omitempty" yaml:"duration,omitempty" toml:"duration,omitempty"`
	Optimistic   float64  `json:"optimistic,omitempty" yaml:"optimistic,omitempty" toml:"optimistic,omitempty"`
	MostLikely   float64  `json:"most_likely,omitempty" yaml:"most_likely,omitempty" toml:"most_likely,omitempty"`
	Pessimistic  float64  `json:"pessimistic,omitempty" yaml:"pessimistic,omitempty" toml:"pessimistic,omitempty"`
	Predecessors []string `json:"predecessors" yaml:"predecessors" toml:"predecessors"`
}

// ExpectedDuration returns the un-rounded duration of the task.
func (t *RawTask) ExpectedDuration() (float64, error) {
	if t.Duration != 0 {
		if !validPositive(t.Duration) {
			return 0, errors.New("duration must be a positive number")
		}
		return t.Duration, nil
	}
	if t.Optimistic == 0 && t.MostLikely == 0 && t.Pessimistic == 0 {
		return 0, errors.New("duration is required")
	}
	if !validPositive(t.Optimistic) || !validPositive(t.MostLikely) || !validPositive(t.Pessimistic) {
		return 0, errors.New("optimistic, most_likely and pessimistic must all be positive numbers")
	}
	return (t.Optimistic + 4*t.MostLikely + t.Pessimistic) / 6, nil
}

func validPositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

// roundDuration rounds half away from zero and floors the result at 1.
func roundDuration(d float64) int {
	n := int(math.Round(d))
	if n < 1 {
		return 1
	}
	return n
}

// NormalizeName trims and upper-cases a task identifier.
func NormalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// splitPredecessors normalizes predecessor entries. An entry such as "C G"
// or "C,G" names several tasks. Empty names and duplicates are dropped;
// first-seen order is kept.
func splitPredecessors(entries []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		for _, f := range strings.FieldsFunc(e, isPredecessorSeparator) {
			name := NormalizeName(f)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func isPredecessorSeparator(r rune) bool {
	switch r {
	case ',', ';', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// Task is a normalized task. Predecessors hold indices into Graph.Tasks.
type Task struct {
	Name         string
	Duration     int
	Predecessors []int
}

// Graph is a validated task graph in arena form: tasks are addressed by
// their input position, and names resolve through a single lookup table.
// A Graph is read-only once returned by Normalize.
type Graph struct {
	Tasks []Task

	index      map[string]int
	successors [][]int
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.Tasks) }

// Index returns the position of the task with the given name.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.index[NormalizeName(name)]
	return i, ok
}

// Successors returns the indices of tasks that list task i as a predecessor,
// in input order.
func (g *Graph) Successors(i int) []int { return g.successors[i] }

// Normalize canonicalizes raw task records into a Graph. It fails with an
// *InvalidTaskError for the first malformed record, or with an
// *UnknownPredecessorError naming every unresolved reference.
// Self-references are dropped silently.
func Normalize(raw []RawTask) (*Graph, error) {
	g := &Graph{
		Tasks: make([]Task, len(raw)),
		index: make(map[string]int, len(raw)),
	}

	for i := range raw {
		name := NormalizeName(raw[i].Name)
		if name == "" {
			return nil, &InvalidTaskError{Index: i, Reason: "name is required"}
		}
		if strings.ContainsFunc(name, isPredecessorSeparator) {
			return nil, &InvalidTaskError{Index: i, Task: name, Reason: "name must not contain spaces, commas or semicolons"}
		}
		if _, dup := g.index[name]; dup {
			return nil, &InvalidTaskError{Index: i, Task: name, Reason: "duplicate task name"}
		}
		d, err := raw[i].ExpectedDuration()
		if err != nil {
			return nil, &InvalidTaskError{Index: i, Task: name, Reason: err.Error()}
		}
		if d > MaxDuration {
			return nil, &InvalidTaskError{Index: i, Task: name, Reason: "duration is too large"}
		}
		g.index[name] = i
		g.Tasks[i] = Task{Name: name, Duration: roundDuration(d)}
	}

	var missing []PredecessorRef
	for i := range raw {
		self := g.Tasks[i].Name
		for _, p := range splitPredecessors(raw[i].Predecessors) {
			if p == self {
				continue
			}
			j, ok := g.index[p]
			if !ok {
				missing = append(missing, PredecessorRef{Predecessor: p, Task: self})
				continue
			}
			g.Tasks[i].Predecessors = append(g.Tasks[i].Predecessors, j)
		}
	}
	if len(missing) > 0 {
		return nil, &UnknownPredecessorError{Refs: missing}
	}

	g.successors = make([][]int, len(g.Tasks))
	for i := range g.Tasks {
		for _, p := range g.Tasks[i].Predecessors {
			g.successors[p] = append(g.successors[p], i)
		}
	}
	return g, nil
}
