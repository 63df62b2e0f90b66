// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/anstrom/scanwrap/internal/metrics Recorder

// Recorder receives scan session events.
// This interface allows for easy mocking and testing of metrics functionality.
type Recorder interface {
	// SessionStarted marks a session entering the Running state.
	SessionStarted()

	// SessionFinished records the outcome and wall time of a completed session.
	SessionFinished(status string, duration time.Duration)

	// HostsParsed adds count hosts with the given status.
	HostsParsed(status string, count int)

	// PortsParsed adds count ports in the given state category.
	PortsParsed(state string, count int)

	// ReportFileError counts a failed read or parse of one report file.
	ReportFileError(kind string)
}

// Session outcome labels.
const (
	StatusSuccess     = "success"
	StatusSpawnFailed = "spawn_failed"
	StatusNonZeroExit = "non_zero_exit"
)

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) SessionStarted()                       {}
func (Nop) SessionFinished(string, time.Duration) {}
func (Nop) HostsParsed(string, int)               {}
func (Nop) PortsParsed(string, int)               {}
func (Nop) ReportFileError(string)                {}

// Ensure implementations satisfy Recorder.
var (
	_ Recorder = Nop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)
