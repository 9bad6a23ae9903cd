package metrics

import "time"

// Recorder defines observability hooks for the local server.
// Implementations may forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	ObserveRequest(route string, status int, d time.Duration)
	IncCompletion(model string, stream bool)
}

// NoopRecorder does nothing. It satisfies both Recorder and launcher.Recorder.
type NoopRecorder struct{}

func (NoopRecorder) ObserveEnsure(string, time.Duration)       {}
func (NoopRecorder) IncProbe(bool)                             {}
func (NoopRecorder) IncLaunch(bool)                            {}
func (NoopRecorder) ObserveRequest(string, int, time.Duration) {}
func (NoopRecorder) IncCompletion(string, bool)                {}
