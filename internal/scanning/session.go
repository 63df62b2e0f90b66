package scanning

import (
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/metrics"
)

// SessionState is the lifecycle position of a Session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRunning
	StateCompleted
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Session runs one scan exactly once and holds its Report.
//
// A Session moves Idle -> Running -> Completed. Start is idempotent, and
// every accessor that needs the result starts the scan if nobody has yet.
type Session struct {
	id       string
	request  *Request
	runner   Runner
	parser   *Parser
	recorder metrics.Recorder
	logger   *logging.Logger

	mu      sync.Mutex
	state   SessionState
	report  *Report
	outcome *Outcome
}

// NewSession builds the request up front, so invalid targets fail here,
// and returns an Idle session.
func NewSession(targets []string, opts ...Option) (*Session, error) {
	o := buildOptions(opts)

	req, err := newRequest(targets, o)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := o.logger.WithSession(id)

	runner := o.runner
	if runner == nil {
		runner = NewProcessRunner(logger)
	}

	return &Session{
		id:       id,
		request:  req,
		runner:   runner,
		parser:   NewParser(logger, o.recorder),
		recorder: o.recorder,
		logger:   logger.WithComponent("session"),
		state:    StateIdle,
	}, nil
}

// Start runs the scan, parses its output and removes the report files.
// Once Completed it returns the stored Report without scanning again.
// Concurrent callers block until the first run finishes.
func (s *Session) Start() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted {
		return s.report
	}

	s.state = StateRunning
	s.recorder.SessionStarted()
	s.logger.Info("Starting scan", "targets", s.request.Targets(), "output_base", s.request.OutputBase())

	start := time.Now()
	s.outcome, s.report = s.execute()
	duration := time.Since(start)

	status := outcomeStatus(s.outcome)
	s.recorder.SessionFinished(status, duration)
	s.logger.Info("Scan completed",
		"status", status,
		"exit_code", s.outcome.ExitCode,
		"hosts", s.report.Len(),
		"duration", duration)

	s.state = StateCompleted
	return s.report
}

// execute runs and parses, removing the report files on every path.
func (s *Session) execute() (outcome *Outcome, report *Report) {
	defer func() {
		_ = s.runner.Cleanup(s.request)
	}()

	outcome = s.runner.Run(s.request)
	if outcome == nil {
		outcome = &Outcome{ExitCode: exitCodeNotStarted}
	}
	report = s.parser.Parse(s.request.OutputBase())
	return outcome, report
}

func outcomeStatus(o *Outcome) string {
	switch {
	case !o.Started:
		return metrics.StatusSpawnFailed
	case o.ExitCode != 0:
		return metrics.StatusNonZeroExit
	default:
		return metrics.StatusSuccess
	}
}

// Report returns the scan result, starting the scan if needed.
func (s *Session) Report() *Report {
	return s.Start()
}

// Hosts yields the hosts in document order. Each range over the returned
// sequence starts from the first host again.
func (s *Session) Hosts() iter.Seq[*Host] {
	return func(yield func(*Host) bool) {
		for _, h := range s.Start().Hosts {
			if !yield(h) {
				return
			}
		}
	}
}

// All yields each host with its position in the report.
func (s *Session) All() iter.Seq2[int, *Host] {
	return func(yield func(int, *Host) bool) {
		for i, h := range s.Start().Hosts {
			if !yield(i, h) {
				return
			}
		}
	}
}

// Outcome returns the process result, starting the scan if needed.
func (s *Session) Outcome() *Outcome {
	s.Start()
	return s.outcome
}

// Stdout returns the scanner's standard output.
func (s *Session) Stdout() string {
	return s.Outcome().Stdout
}

// Stderr returns the scanner's standard error.
func (s *Session) Stderr() string {
	return s.Outcome().Stderr
}

// ExitCode returns the scanner's exit status, -1 if it never started.
func (s *Session) ExitCode() int {
	return s.Outcome().ExitCode
}

// State returns the current lifecycle state without starting anything.
func (s *Session) State() SessionState {
	if !s.mu.TryLock() {
		return StateRunning
	}
	defer s.mu.Unlock()
	return s.state
}

// ID returns the session identifier used in logs and storage.
func (s *Session) ID() string {
	return s.id
}

// Request returns the session's scan request.
func (s *Session) Request() *Request {
	return s.request
}

// Command returns the scanner argument vector.
func (s *Session) Command() []string {
	return s.request.Command()
}
