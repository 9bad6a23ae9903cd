package launcher

import "time"

// Ensure outcomes passed to Recorder.ObserveEnsure.
const (
	OutcomeReused   = "reused"   // existing server passed its probe
	OutcomeLaunched = "launched" // this caller spawned the server that became ready
	OutcomeJoined   = "joined"   // another caller launched; we waited for its server
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
	OutcomeFailed   = "failed"
)

// Recorder receives readiness events from a Coordinator.
type Recorder interface {
	ObserveEnsure(outcome string, d time.Duration)
	IncProbe(healthy bool)
	IncLaunch(success bool)
}

type noopRecorder struct{}

func (noopRecorder) ObserveEnsure(string, time.Duration) {}
func (noopRecorder) IncProbe(bool)                       {}
func (noopRecorder) IncLaunch(bool)                      {}
