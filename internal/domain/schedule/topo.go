package schedule

// TopoOrder returns task indices such that every task follows all of its
// predecessors. Tasks that become ready at the same time keep their input
// order, so identical input always yields the identical order. When the
// graph has a cycle it returns a *CycleDetectedError naming every task
// that could not be placed.
func (g *Graph) TopoOrder() ([]int, error) {
	n := len(g.Tasks)
	inDegree := make([]int, n)
	queue := make([]int, 0, n)
	for i := range g.Tasks {
		inDegree[i] = len(g.Tasks[i].Predecessors)
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	for head := 0; head < len(queue); head++ {
		node := queue[head]
		order = append(order, node)
		for _, succ := range g.successors[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(order) < n {
		placed := make([]bool, n)
		for _, i := range order {
			placed[i] = true
		}
		var stuck []string
		for i := range g.Tasks {
			if !placed[i] {
				stuck = append(stuck, g.Tasks[i].Name)
			}
		}
		return nil, &CycleDetectedError{Tasks: stuck}
	}
	return order, nil
}

// Levels assigns each task its depth in the precedence graph: 0 for tasks
// without predecessors, otherwise one more than the deepest predecessor.
// order must be a topological order of g. The result is indexed like
// g.Tasks.
func Levels(g *Graph, order []int) []int {
	level := make([]int, len(g.Tasks))
	for _, i := range order {
		for _, p := range g.Tasks[i].Predecessors {
			if level[p]+1 > level[i] {
				level[i] = level[p] + 1
			}
		}
	}
	return level
}
