package history

import "errors"

var (
	// ErrInvalidMaxLength indicates a non-positive capacity was configured.
	ErrInvalidMaxLength = errors.New("history: max length must be positive")
	// ErrProjectionRequired indicates New was called without a projection.
	ErrProjectionRequired = errors.New("history: projection is required")
	// ErrUnknownTrigger indicates a strategy was configured for a trigger
	// that is not on the clock.
	ErrUnknownTrigger = errors.New("history: strategy configured for unwatched trigger")
	// ErrNoSources indicates a projection was built from zero cells.
	ErrNoSources = errors.New("history: at least one source is required")
	// ErrShapeMismatch indicates a composite value does not match the
	// projection it is written back into.
	ErrShapeMismatch = errors.New("history: composite shape mismatch")
	// ErrMixedGraphs indicates sources or triggers span several graphs.
	ErrMixedGraphs = errors.New("history: sources and triggers must share one graph")
	// ErrInvalidDecision indicates a strategy produced an unknown outcome.
	ErrInvalidDecision = errors.New("history: invalid strategy decision")
	// ErrInvalidSnapshot indicates a persisted snapshot violates the history
	// invariants.
	ErrInvalidSnapshot = errors.New("history: invalid snapshot")
	// ErrClosed indicates the history was closed.
	ErrClosed = errors.New("history: closed")
)
