package schedule

// slack holds per-task float and the derived critical set.
type slack struct {
	total, free []int
	critical    []bool
}

func analyzeSlack(g *Graph, d *dates) *slack {
	n := len(g.Tasks)
	s := &slack{
		total:    make([]int, n),
		free:     make([]int, n),
		critical: make([]bool, n),
	}
	for i := range g.Tasks {
		s.total[i] = d.ls[i] - d.es[i]
		s.critical[i] = s.total[i] == 0

		succ := g.successors[i]
		if len(succ) == 0 {
			s.free[i] = d.finish - d.ef[i]
			continue
		}
		minES := d.es[succ[0]]
		for _, j := range succ[1:] {
			if d.es[j] < minES {
				minES = d.es[j]
			}
		}
		s.free[i] = minES - 1 - d.ef[i]
	}
	return s
}

// criticalEdges emits (predecessor, task) for every critical task whose
// predecessor is also critical, walking tasks in topological order.
func criticalEdges(g *Graph, order []int, critical []bool) []Edge {
	var edges []Edge
	for _, i := range order {
		if !critical[i] {
			continue
		}
		for _, p := range g.Tasks[i].Predecessors {
			if critical[p] {
				edges = append(edges, Edge{From: g.Tasks[p].Name, To: g.Tasks[i].Name})
			}
		}
	}
	return edges
}
