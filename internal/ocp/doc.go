// Package ocp turns phase declarations into a transcribed nonlinear
// program.
//
// A [Program] builds, phase by phase, the state and control layouts (base
// q, qdot and tau blocks followed by the fatigue blocks), the torque-driven
// right-hand side augmented by the phase's fatigue registry, the shooting
// function, the decision-vector bounds and initial guess, and the
// objective. Constraints and continuity are then pushed through a single
// [constraint.Engine] into one accumulator.
package ocp
