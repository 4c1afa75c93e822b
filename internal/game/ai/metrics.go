package ai

// Metrics receives brain activity counters. Implementations must be safe for
// concurrent use by many brains.
type Metrics interface {
	// ThinkCompleted records a finished think cycle and the size of its batch.
	ThinkCompleted(state BehaviorState, scheduled int)
	// ThinkSkipped records a tick that did not run a cycle.
	ThinkSkipped(reason string)
	// ActionExecuted records an Execute call.
	ActionExecuted(action string)
	// ActionBroken records a cancelled or skipped action.
	ActionBroken(action string)
	// ActionFault records a failed Analyze or Execute; phase is "analyze" or "execute".
	ActionFault(action, phase string)
	// AggroEvicted records entries removed by table cleanup.
	AggroEvicted(n int)
}

// Skip reasons reported through Metrics.ThinkSkipped.
const (
	SkipBusyPlaying = "playing"
	SkipReentrant   = "thinking"
	SkipStopped     = "stopped"
)

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ThinkCompleted(BehaviorState, int) {}
func (NopMetrics) ThinkSkipped(string)               {}
func (NopMetrics) ActionExecuted(string)             {}
func (NopMetrics) ActionBroken(string)               {}
func (NopMetrics) ActionFault(string, string)        {}
func (NopMetrics) AggroEvicted(int)                  {}
