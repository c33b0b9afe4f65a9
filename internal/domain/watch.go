package domain

// WatchState is the lifecycle of one watch session. Transitions only move
// forward: Idle -> Running -> Completed | Cancelled.
type WatchState int

const (
	WatchIdle WatchState = iota
	WatchRunning
	WatchCompleted
	WatchCancelled
)

func (s WatchState) String() string {
	switch s {
	case WatchIdle:
		return "idle"
	case WatchRunning:
		return "running"
	case WatchCompleted:
		return "completed"
	case WatchCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ClaimStatus tracks one reward settlement attempt for a session.
type ClaimStatus int

const (
	ClaimNotStarted ClaimStatus = iota
	ClaimInFlight
	ClaimSucceeded
	ClaimFailed
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimNotStarted:
		return "not_started"
	case ClaimInFlight:
		return "in_flight"
	case ClaimSucceeded:
		return "succeeded"
	case ClaimFailed:
		return "failed"
	}
	return "unknown"
}
