// Package constraint assembles the constraint vector of a transcribed
// optimal control problem.
//
// An [Engine] owns no residuals itself: every builder computes its whole
// block first, then pushes it into the shared [nlp.Accumulator], so a
// failing descriptor never leaves a partial block behind. [Engine.Continuity]
// adds the shooting, inter-phase and cyclic equalities to the same
// accumulator.
package constraint
