// Package fatigue augments a phase's state derivative with auxiliary
// internal-state dynamics such as muscle or joint-torque fatigue.
//
// Three layers compose:
//
//   - [Model]: one contributor with its own internal states (for example
//     [Xia]'s active, resting and fatigued compartments)
//   - [Aggregator]: one or more models under ordered named channels (the
//     minus/plus parts of a torque, or a single "fatigue" channel)
//   - [Registry]: per phase, families of aggregators, one slot per
//     controlled element; [Registry.Dynamics] folds them all
//
// Fatigue states live in dedicated blocks of the phase state layout, named
// family[_channel]_suffix (tau_ma, tau_minus_mf, ...), one element per
// registered slot. A model writes the derivative of its own elements and
// leaves every other entry untouched.
package fatigue
