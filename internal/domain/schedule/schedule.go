package schedule

import (
	"fmt"

	"github.com/Strob0t/PertForge/internal/domain"
)

// DefaultProjectStart is the start offset used when the caller gives none.
const DefaultProjectStart = 1

// MaxProjectStart is the largest accepted t0. With MaxDuration per task the
// finish of any chain stays far below the int range.
const MaxProjectStart = 1_000_000_000

// Edge is a precedence pair: From must finish before To starts.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TaskSchedule is the computed schedule of one task.
type TaskSchedule struct {
	Name           string   `json:"name"`
	Duration       int      `json:"duration"`
	Predecessors   []string `json:"predecessors"`
	Successors     []string `json:"successors"`
	EarliestStart  int      `json:"es"`
	EarliestFinish int      `json:"ef"`
	LatestStart    int      `json:"ls"`
	LatestFinish   int      `json:"lf"`
	TotalSlack     int      `json:"total_slack"`
	FreeSlack      int      `json:"free_slack"`
	IsCritical     bool     `json:"is_critical"`
	Level          int      `json:"level"`
}

// Result is a fully dated schedule with critical-path analysis.
type Result struct {
	Order         []string                `json:"order"`
	Tasks         map[string]TaskSchedule `json:"per_task"`
	ProjectStart  int                     `json:"project_start"`
	ProjectFinish int                     `json:"project_finish"`
	CriticalPath  []string                `json:"critical_path"`
	CriticalEdges []Edge                  `json:"critical_edges"`
	Edges         []Edge                  `json:"edges"`
}

// Duration returns the number of time units from project start to finish.
func (r *Result) Duration() int {
	if len(r.Order) == 0 {
		return 0
	}
	return r.ProjectFinish - r.ProjectStart + 1
}

// Compute normalizes raw and schedules it from project start t0.
func Compute(raw []RawTask, t0 int) (*Result, error) {
	if err := checkProjectStart(t0); err != nil {
		return nil, err
	}
	g, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return ComputeGraph(g, t0)
}

// ComputeGraph schedules an already normalized graph. It fails only when
// the graph contains a cycle or t0 is out of range; no partial result is
// returned.
func ComputeGraph(g *Graph, t0 int) (*Result, error) {
	if err := checkProjectStart(t0); err != nil {
		return nil, err
	}
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	d := forwardPass(g, order, t0)
	backwardPass(g, order, d)
	s := analyzeSlack(g, d)

	return assemble(g, order, t0, d, s), nil
}

func assemble(g *Graph, order []int, t0 int, d *dates, s *slack) *Result {
	levels := Levels(g, order)
	res := &Result{
		Order:         make([]string, 0, len(order)),
		Tasks:         make(map[string]TaskSchedule, len(order)),
		ProjectStart:  t0,
		ProjectFinish: d.finish,
		CriticalPath:  []string{},
		CriticalEdges: criticalEdges(g, order, s.critical),
		Edges:         []Edge{},
	}
	if res.CriticalEdges == nil {
		res.CriticalEdges = []Edge{}
	}

	for _, i := range order {
		t := &g.Tasks[i]
		res.Order = append(res.Order, t.Name)
		if s.critical[i] {
			res.CriticalPath = append(res.CriticalPath, t.Name)
		}
		preds := names(g, t.Predecessors)
		for _, p := range preds {
			res.Edges = append(res.Edges, Edge{From: p, To: t.Name})
		}
		res.Tasks[t.Name] = TaskSchedule{
			Name:           t.Name,
			Duration:       t.Duration,
			Predecessors:   preds,
			Successors:     names(g, g.successors[i]),
			EarliestStart:  d.es[i],
			EarliestFinish: d.ef[i],
			LatestStart:    d.ls[i],
			LatestFinish:   d.lf[i],
			TotalSlack:     s.total[i],
			FreeSlack:      s.free[i],
			IsCritical:     s.critical[i],
			Level:          levels[i],
		}
	}
	return res
}

func names(g *Graph, idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.Tasks[i].Name
	}
	return out
}

// StrictCriticalEdges narrows r.CriticalEdges to edges that carry no slack
// themselves, i.e. the successor starts right after the predecessor
// finishes. In graphs with several disjoint zero-slack chains this drops
// edges that join two critical tasks without being a real critical link.
func StrictCriticalEdges(r *Result) []Edge {
	out := make([]Edge, 0, len(r.CriticalEdges))
	for _, e := range r.CriticalEdges {
		if r.Tasks[e.From].EarliestFinish+1 == r.Tasks[e.To].EarliestStart {
			out = append(out, e)
		}
	}
	return out
}

func checkProjectStart(t0 int) error {
	if t0 < 0 || t0 > MaxProjectStart {
		return fmt.Errorf("%w: got %d, want 0..%d: %w", ErrInvalidProjectStart, t0, MaxProjectStart, domain.ErrValidation)
	}
	return nil
}
