package job

// State is a step of the per-image state machine.
type State string

const (
	StatePending   State = "pending"
	StateMounted   State = "mounted"
	StateCataloged State = "cataloged"
	StateMerging   State = "merging"
	StateCleaned   State = "cleaned"
	StateFinished  State = "finished"
)

// Outcome is the terminal classification of one image.
type Outcome string

const (
	// OutcomeSucceeded means the catalog was non-empty and the merge recorded
	// no errors.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomePartiallyFailed means at least one output exists but errors were
	// recorded.
	OutcomePartiallyFailed Outcome = "partially failed"
	// OutcomeFailed means no usable output was produced.
	OutcomeFailed Outcome = "failed"
)

// Failure reasons shared with the summary and history.
const (
	ReasonNoSegments        = "no segments found"
	ReasonInsufficientSpace = "insufficient disk space"
	ReasonCancelled         = "cancelled"
	ReasonAlreadyConverted  = "already converted"
	ReasonDryRun            = "dry run"
)
