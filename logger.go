package objpool

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger used for the pool's debug-level
// diagnostics: Stack creation, HandoffQueue creation, and a Get falling
// back to the factory on an empty Stack. Admission-sampling drops,
// capacity denials, queue unlinks and DoubleRecycle/StateInvariant
// detections are not logged. It follows
// the teacher's logiface facade, parameterized over stumpy's zero-allocation
// JSON event type.
//
// A nil *Logger is valid and silently discards all log calls (logiface's
// Logger/Builder methods are nil-safe), matching the WithLogger option's
// "unset means no-op" default.
type Logger = logiface.Logger[*stumpy.Event]

// NewLogger constructs a Logger writing newline-delimited JSON to w, using
// stumpy as the default writer/event-factory implementation, exactly as
// github.com/joeycumines/logiface-stumpy wires it up for its own callers.
func NewLogger(w io.Writer) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.L.WithWriter(w)),
		logiface.WithLevel[*stumpy.Event](logiface.LevelDebug),
	)
}
