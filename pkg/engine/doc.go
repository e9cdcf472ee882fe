// Package engine plans and executes the operations that bring a target tree
// to the state its options describe.
//
// # Overview
//
// A reconciliation runs in three phases:
//
//  1. Plan - the Planner asks every option of every target, and every
//     registered operation type, which operation is required
//  2. Order - candidates are deduplicated per target and kind, and sorted
//     topologically by their declared dependencies (DAGBuilder)
//  3. Execute - the Executor applies the operations one at a time, and
//     undoes the applied ones in reverse order when one fails
//
// # Operations
//
// Every operation implements Operation, which composes three capability
// interfaces:
//
//   - Applicable: re-checks live state; called at planning time and again
//     right before apply, since earlier operations may have changed it
//   - HasDependencies: kinds that must run first on the same target
//   - Undoable: reverses Apply when this instance changed something
//
// Concrete operations embed BaseOperation for identity, descriptions and
// the status state machine:
//
//	planned -> checked -> applied -> undone
//	planned -> skipped
//	planned|checked -> failed
//
// # Discovery
//
// Operations are found two ways. Options that implement OperationSource
// return the operation they require. Operation types registered through an
// OperationsProvider are asked about every option with ForOption. Both paths
// may produce the same kind for the same target; only the first is kept.
//
// # Dry runs
//
// A plan built with PlanOptions.DryRun lists what would change without
// touching anything (Plan.Describe). The Executor refuses dry-run plans.
//
// # Error Classification
//
// Errors are classified as transient, throttled, conflict or permanent, with
// an optional code:
//
//	if engine.ErrorCode(err) == engine.ErrCodeMissingEnvVariable {
//	    // ask the user for a token
//	}
//
// Classify maps typed errors from other packages (type mismatches, missing
// credentials, unexpected hosting platform responses) onto EngineError.
//
// # Thread Safety
//
// Planning and execution are sequential. Operations mutate a shared working
// tree, so one batch runs against a given root at a time.
package engine
