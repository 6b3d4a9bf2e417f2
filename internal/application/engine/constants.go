package engine

// Source handle constants for conditional nodes.
const (
	// SourceHandleTrue represents the "true" branch from a conditional node.
	SourceHandleTrue = "true"

	// SourceHandleFalse represents the "false" branch from a conditional node.
	SourceHandleFalse = "false"
)

// Node types dispatched specially by the DAG executor rather than looked up
// in the executor registry. Any other Node.Type is treated as a leaf
// and passed straight to the executor registry under that name.
const (
	// NodeTypeConditional represents a conditional/branching node whose
	// output drives sourceHandle-based edge routing.
	NodeTypeConditional = "conditional"

	// NodeTypeParallel fans out into concurrent branches and joins them
	// per JoinType (all/any/none).
	NodeTypeParallel = "parallel"

	// NodeTypeLoop repeats its body once per item, statically (fixed
	// count) or dynamically (sourceExpression resolved to an array).
	NodeTypeLoop = "loop"

	// NodeTypeSubprocess spawns a child WorkflowInstance and optionally
	// waits for it to reach a terminal state.
	NodeTypeSubprocess = "subprocess"
)

// Join types for a parallel node.
const (
	JoinTypeAll  = "all"
	JoinTypeAny  = "any"
	JoinTypeNone = "none"
)

// Default configuration values.
const (
	// DefaultMaxParallelism is the default maximum number of concurrent nodes per wave.
	DefaultMaxParallelism = 10

	// DefaultNodePriority is the default priority for nodes without explicit priority.
	DefaultNodePriority = 0
)
