// Package expr provides the symbolic expression graph used to build
// residuals, dynamics and objectives of an optimal-control problem.
//
// Expressions are immutable DAG nodes:
//
//   - [Const]: numeric literal
//   - [Var]: named scalar symbol, resolved from an [Env] at evaluation
//   - unary and binary operators built through [Add], [Mul], [Sin], ...
//   - [IfElse]: branchless selection on a comparison result
//
// Constructors fold constants eagerly, so graphs built from numeric
// parameters stay small. [Function] captures a set of input symbols and an
// output vector so the same expression can be re-applied to other inputs,
// which is how per-node residuals and shooting steps are produced.
//
// # Evaluation
//
// [Eval] and [Vector.Eval] memoize shared sub-graphs, so deep graphs
// produced by multi-stage integrators evaluate in time linear in the number
// of distinct nodes.
package expr
