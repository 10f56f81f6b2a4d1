// Package dynamo holds the vocabulary shared by every stage of optimal
// control transcription:
//
//   - [VariableKind]: state or control
//   - [Bounds]: paired lower/upper numeric limits
//   - domain errors and [ConfigError]
//
// # Error Handling
//
// Assembly never recovers. Every configuration fault is returned as a
// [*ConfigError] wrapping one of the sentinels below, so callers can match
// with errors.Is and still print the offending descriptor:
//
//	if errors.Is(err, dynamo.ErrNoControlAtLastNode) { ... }
package dynamo
