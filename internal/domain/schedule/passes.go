package schedule

// dates holds the per-task working arrays, indexed like Graph.Tasks.
type dates struct {
	es, ef, ls, lf []int
	finish         int
}

// forwardPass computes earliest start and finish in topological order.
// Tasks without predecessors start at t0.
func forwardPass(g *Graph, order []int, t0 int) *dates {
	n := len(g.Tasks)
	d := &dates{
		es:     make([]int, n),
		ef:     make([]int, n),
		ls:     make([]int, n),
		lf:     make([]int, n),
		finish: t0,
	}
	for _, i := range order {
		t := &g.Tasks[i]
		start := t0
		for k, p := range t.Predecessors {
			if k == 0 || d.ef[p]+1 > start {
				start = d.ef[p] + 1
			}
		}
		d.es[i] = start
		d.ef[i] = start + t.Duration - 1
		if d.ef[i] > d.finish {
			d.finish = d.ef[i]
		}
	}
	return d
}

// backwardPass computes latest start and finish in reverse topological
// order. Tasks without successors must finish by the project finish.
func backwardPass(g *Graph, order []int, d *dates) {
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		succ := g.successors[i]
		finish := d.finish
		for j, s := range succ {
			if j == 0 || d.ls[s]-1 < finish {
				finish = d.ls[s] - 1
			}
		}
		d.lf[i] = finish
		d.ls[i] = finish - g.Tasks[i].Duration + 1
	}
}
