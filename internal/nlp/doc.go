// Package nlp holds the discretized optimal-control problem: per-phase
// symbolic trajectories, the shared constraint vector and the final
// [Problem] handed to a solver.
//
// The constraint vector g and its bounds only grow through an
// [Accumulator]. Every push appends the residual and its bound pair in one
// step, so len(g) == len(min) == len(max) holds after every call; vector
// pushes validate sizes before appending anything.
//
// # Thread Safety
//
// Accumulator and Phase are built by a single goroutine. A finished
// [Problem] is read-only and may be evaluated concurrently.
package nlp
