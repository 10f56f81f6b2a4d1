// Package physics provides symbolic articulated models for transcription.
//
// Each model implements [biomech.Model], building marker positions, segment
// transforms, forward dynamics and contact forces as expressions of the
// generalized coordinates:
//
//   - [Pendulum]: single actuated link on a pivot
//   - [DoublePendulum]: two links, absolute angles, torques at both joints
//   - [CartPole]: driven cart carrying a free pole
//
// Models also implement [Configurable] for parameter overrides from config
// files, and accept custom fixed reference frames through [Frames].
//
// # Conventions
//
// Planar models live in the x-y plane with y up; segment rotations are about
// z. Contact force components are ordered tangential (x) then normal (y).
package physics
