package schedule_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
)

func exampleTasks() []schedule.RawTask {
	return []schedule.RawTask{
		{Name: "A", Duration: 3},
		{Name: "B", Duration: 2, Predecessors: []string{"A"}},
		{Name: "C", Duration: 4, Predecessors: []string{"A"}},
		{Name: "D", Duration: 1, Predecessors: []string{"B", "C"}},
	}
}

func mustCompute(t *testing.T, raw []schedule.RawTask, t0 int) *schedule.Result {
	t.Helper()
	res, err := schedule.Compute(raw, t0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return res
}

func assertDates(t *testing.T, res *schedule.Result, name string, es, ef, ls, lf, slack int) {
	t.Helper()
	ts, ok := res.Tasks[name]
	if !ok {
		t.Fatalf("task %s missing from result", name)
	}
	got := [5]int{ts.EarliestStart, ts.EarliestFinish, ts.LatestStart, ts.LatestFinish, ts.TotalSlack}
	want := [5]int{es, ef, ls, lf, slack}
	if got != want {
		t.Errorf("task %s: ES/EF/LS/LF/slack = %v, want %v", name, got, want)
	}
	if ts.IsCritical != (slack == 0) {
		t.Errorf("task %s: is_critical = %v with slack %d", name, ts.IsCritical, slack)
	}
}

func TestCompute_Example(t *testing.T) {
	res := mustCompute(t, exampleTasks(), 1)

	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, res.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assertDates(t, res, "A", 1, 3, 1, 3, 0)
	assertDates(t, res, "B", 4, 5, 6, 7, 2)
	assertDates(t, res, "C", 4, 7, 4, 7, 0)
	assertDates(t, res, "D", 8, 8, 8, 8, 0)

	if res.ProjectStart != 1 || res.ProjectFinish != 8 {
		t.Errorf("project start/finish = %d/%d, want 1/8", res.ProjectStart, res.ProjectFinish)
	}
	if res.Duration() != 8 {
		t.Errorf("duration = %d, want 8", res.Duration())
	}
	if diff := cmp.Diff([]string{"A", "C", "D"}, res.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
	wantEdges := []schedule.Edge{{From: "A", To: "C"}, {From: "C", To: "D"}}
	if diff := cmp.Diff(wantEdges, res.CriticalEdges); diff != "" {
		t.Errorf("critical edges mismatch (-want +got):\n%s", diff)
	}
	if got := res.Tasks["B"].FreeSlack; got != 2 {
		t.Errorf("B free slack = %d, want 2", got)
	}
	if got := res.Tasks["D"].Level; got != 2 {
		t.Errorf("D level = %d, want 2", got)
	}
	if diff := cmp.Diff([]string{"B", "C"}, res.Tasks["A"].Successors); diff != "" {
		t.Errorf("A successors mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_ProjectStartOffset(t *testing.T) {
	res := mustCompute(t, exampleTasks(), 10)
	assertDates(t, res, "A", 10, 12, 10, 12, 0)
	assertDates(t, res, "D", 17, 17, 17, 17, 0)
	if res.ProjectFinish != 17 {
		t.Errorf("project finish = %d, want 17", res.ProjectFinish)
	}
}

func TestCompute_ZeroStart(t *testing.T) {
	res := mustCompute(t, []schedule.RawTask{{Name: "solo", Duration: 2}}, 0)
	assertDates(t, res, "SOLO", 0, 1, 0, 1, 0)
}

func TestCompute_NegativeStart(t *testing.T) {
	_, err := schedule.Compute(exampleTasks(), -1)
	if !errors.Is(err, schedule.ErrInvalidProjectStart) {
		t.Fatalf("expected ErrInvalidProjectStart, got %v", err)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected error to wrap domain.ErrValidation, got %v", err)
	}
}

func TestCompute_ProjectStartBounds(t *testing.T) {
	tests := []struct {
		name string
		t0   int
		ok   bool
	}{
		{"largest accepted", schedule.MaxProjectStart, true},
		{"one past the limit", schedule.MaxProjectStart + 1, false},
		{"near int overflow", math.MaxInt - 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := schedule.Compute(exampleTasks(), tt.t0)
			if !tt.ok {
				if !errors.Is(err, schedule.ErrInvalidProjectStart) {
					t.Fatalf("expected ErrInvalidProjectStart, got %v", err)
				}
				if res != nil {
					t.Fatalf("expected no result, got %+v", res)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.ProjectFinish != tt.t0+7 {
				t.Errorf("project finish = %d, want %d", res.ProjectFinish, tt.t0+7)
			}
			for name, ts := range res.Tasks {
				if ts.TotalSlack < 0 {
					t.Errorf("task %s has negative slack %d", name, ts.TotalSlack)
				}
			}
			if len(res.CriticalPath) == 0 {
				t.Error("expected a critical path")
			}
		})
	}
}

func TestComputeGraph_RejectsLargeStart(t *testing.T) {
	g, err := schedule.Normalize(exampleTasks())
	if err != nil {
		t.Fatal(err)
	}
	_, err = schedule.ComputeGraph(g, schedule.MaxProjectStart+1)
	if !errors.Is(err, schedule.ErrInvalidProjectStart) {
		t.Fatalf("expected ErrInvalidProjectStart, got %v", err)
	}
}

func TestCompute_Empty(t *testing.T) {
	res := mustCompute(t, nil, 1)
	if len(res.Order) != 0 || len(res.CriticalPath) != 0 {
		t.Fatalf("expected empty schedule, got %+v", res)
	}
	if res.Duration() != 0 {
		t.Errorf("duration = %d, want 0", res.Duration())
	}
}

func TestCompute_Properties(t *testing.T) {
	raw := []schedule.RawTask{
		{Name: "design", Duration: 5},
		{Name: "proto", Duration: 3, Predecessors: []string{"design"}},
		{Name: "docs", Duration: 2, Predecessors: []string{"design"}},
		{Name: "review", Duration: 1, Predecessors: []string{"proto", "docs"}},
		{Name: "infra", Duration: 4},
		{Name: "deploy", Duration: 2, Predecessors: []string{"review", "infra"}},
		{Name: "training", Duration: 6, Predecessors: []string{"docs"}},
	}
	res := mustCompute(t, raw, 1)

	maxEF := 0
	zero := 0
	for name, ts := range res.Tasks {
		if ts.EarliestFinish != ts.EarliestStart+ts.Duration-1 {
			t.Errorf("%s: EF %d != ES %d + duration %d - 1", name, ts.EarliestFinish, ts.EarliestStart, ts.Duration)
		}
		if ts.LatestFinish != ts.LatestStart+ts.Duration-1 {
			t.Errorf("%s: LF %d != LS %d + duration %d - 1", name, ts.LatestFinish, ts.LatestStart, ts.Duration)
		}
		if ts.TotalSlack < 0 {
			t.Errorf("%s: negative total slack %d", name, ts.TotalSlack)
		}
		if ts.FreeSlack < 0 || ts.FreeSlack > ts.TotalSlack {
			t.Errorf("%s: free slack %d outside [0, %d]", name, ts.FreeSlack, ts.TotalSlack)
		}
		if ts.EarliestFinish > maxEF {
			maxEF = ts.EarliestFinish
		}
		if ts.TotalSlack == 0 {
			zero++
		}
		for _, p := range ts.Predecessors {
			if res.Tasks[p].EarliestFinish >= ts.EarliestStart {
				t.Errorf("%s starts at %d before predecessor %s finishes at %d", name, ts.EarliestStart, p, res.Tasks[p].EarliestFinish)
			}
		}
	}
	if res.ProjectFinish != maxEF {
		t.Errorf("project finish %d != max EF %d", res.ProjectFinish, maxEF)
	}
	if zero == 0 {
		t.Error("expected at least one zero-slack task")
	}

	pos := make(map[string]int, len(res.Order))
	for i, n := range res.Order {
		pos[n] = i
	}
	for _, e := range res.Edges {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("edge %s -> %s violates order %v", e.From, e.To, res.Order)
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	raw := []schedule.RawTask{
		{Name: "x", Duration: 2},
		{Name: "a", Duration: 1},
		{Name: "m", Duration: 3, Predecessors: []string{"x", "a"}},
		{Name: "b", Duration: 1, Predecessors: []string{"a"}},
		{Name: "z", Duration: 2, Predecessors: []string{"m", "b"}},
	}
	first, err := json.Marshal(mustCompute(t, raw, 1))
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		again, err := json.Marshal(mustCompute(t, raw, 1))
		if err != nil {
			t.Fatal(err)
		}
		if string(again) != string(first) {
			t.Fatalf("non-deterministic output:\n%s\n%s", first, again)
		}
	}
}

func TestCompute_SelfDependencyDropped(t *testing.T) {
	with := exampleTasks()
	with[1].Predecessors = []string{"A", "b"}

	got := mustCompute(t, with, 1)
	want := mustCompute(t, exampleTasks(), 1)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("self dependency changed the schedule (-want +got):\n%s", diff)
	}
}

func TestCompute_Cycle(t *testing.T) {
	raw := []schedule.RawTask{
		{Name: "A", Duration: 1, Predecessors: []string{"B"}},
		{Name: "B", Duration: 1, Predecessors: []string{"A"}},
		{Name: "C", Duration: 1},
	}
	_, err := schedule.Compute(raw, 1)
	var cyc *schedule.CycleDetectedError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleDetectedError, got %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, cyc.Tasks); diff != "" {
		t.Errorf("cycle tasks mismatch (-want +got):\n%s", diff)
	}
	if schedule.Kind(err) != schedule.KindCycleDetected {
		t.Errorf("kind = %q", schedule.Kind(err))
	}
}

func TestCompute_CycleDownstreamReported(t *testing.T) {
	raw := []schedule.RawTask{
		{Name: "A", Duration: 1, Predecessors: []string{"C"}},
		{Name: "B", Duration: 1, Predecessors: []string{"A"}},
		{Name: "C", Duration: 1, Predecessors: []string{"B"}},
		{Name: "D", Duration: 1, Predecessors: []string{"C"}},
		{Name: "E", Duration: 1},
	}
	_, err := schedule.Compute(raw, 1)
	var cyc *schedule.CycleDetectedError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleDetectedError, got %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, cyc.Tasks); diff != "" {
		t.Errorf("cycle tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_MultipleCriticalChains(t *testing.T) {
	raw := []schedule.RawTask{
		{Name: "A", Duration: 2},
		{Name: "B", Duration: 2, Predecessors: []string{"A"}},
		{Name: "C", Duration: 4},
	}
	res := mustCompute(t, raw, 1)
	if diff := cmp.Diff([]string{"A", "C", "B"}, res.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
}

func TestStrictCriticalEdges(t *testing.T) {
	// P feeds both S and T. T keeps P critical while S waits on Q, so the
	// P->S edge joins two critical tasks without being tight.
	raw := []schedule.RawTask{
		{Name: "P", Duration: 1},
		{Name: "Q", Duration: 5},
		{Name: "S", Duration: 1, Predecessors: []string{"P", "Q"}},
		{Name: "T", Duration: 5, Predecessors: []string{"P"}},
	}
	res := mustCompute(t, raw, 1)
	for _, n := range []string{"P", "Q", "S", "T"} {
		if !res.Tasks[n].IsCritical {
			t.Fatalf("expected %s to be critical: %+v", n, res.Tasks[n])
		}
	}

	loose := schedule.Edge{From: "P", To: "S"}
	if !containsEdge(res.CriticalEdges, loose) {
		t.Fatalf("expected %v among critical edges %v", loose, res.CriticalEdges)
	}
	strict := schedule.StrictCriticalEdges(res)
	if containsEdge(strict, loose) {
		t.Errorf("strict edges should drop %v, got %v", loose, strict)
	}
	want := []schedule.Edge{{From: "Q", To: "S"}, {From: "P", To: "T"}}
	for _, e := range want {
		if !containsEdge(strict, e) {
			t.Errorf("strict edges missing %v: %v", e, strict)
		}
	}
}

func containsEdge(edges []schedule.Edge, e schedule.Edge) bool {
	for _, x := range edges {
		if x == e {
			return true
		}
	}
	return false
}

func TestCompute_ThreePointEstimate(t *testing.T) {
	raw := []schedule.RawTask{
		{Name: "A", Optimistic: 2, MostLikely: 4, Pessimistic: 12}, // (2+16+12)/6 = 5
		{Name: "B", Duration: 1, Predecessors: []string{"A"}},
	}
	res := mustCompute(t, raw, 1)
	if got := res.Tasks["A"].Duration; got != 5 {
		t.Errorf("A duration = %d, want 5", got)
	}
	assertDates(t, res, "B", 6, 6, 6, 6, 0)
}
