// Package schedule implements the Critical Path Method over a task graph
// with finish-to-start precedence.
//
// A computation runs in a fixed sequence of stages:
//
//	Normalize   raw records -> Graph (dense indices, validated references)
//	TopoOrder   Kahn's algorithm, FIFO with input-order tie breaking
//	forward     earliest start/finish in topological order
//	backward    latest start/finish in reverse topological order
//	slack       total/free slack, critical set, critical edges
//	Compute     packages everything into a Result
//
// Dates are inclusive integers: a task of duration d starting on day s
// finishes on day s+d-1, and its successors start on the following day.
// The package performs no I/O and keeps no state between calls, so
// independent computations may run concurrently.
package schedule
