package scanning

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/logging"
)

// exitCodeNotStarted is reported when the scanner process never ran.
const exitCodeNotStarted = -1

// Outcome is the immutable result of one scanner process.
type Outcome struct {
	// ExitCode is the process exit status, or -1 if it never started
	ExitCode int
	// Stdout and Stderr hold the captured streams with invalid UTF-8 replaced
	Stdout string
	Stderr string
	// Err is set when the process could not be spawned
	Err error
	// Started reports whether the process was actually launched
	Started bool
	// Duration is the wall time spent waiting for the process
	Duration time.Duration
}

// Success reports whether the process ran and exited with status zero.
func (o *Outcome) Success() bool {
	return o.Started && o.ExitCode == 0
}

// Runner executes a scan request and removes its report files afterwards.
type Runner interface {
	// Run blocks until the scanner exits. Failures are reported in the
	// Outcome, never by panicking.
	Run(req *Request) *Outcome

	// Cleanup removes the request's report files, tolerating their absence.
	Cleanup(req *Request) error
}

// RunnerFunc adapts a function into a Runner with the default cleanup.
type RunnerFunc func(req *Request) *Outcome

// Run calls f(req).
func (f RunnerFunc) Run(req *Request) *Outcome {
	return f(req)
}

// Cleanup removes the report files.
func (f RunnerFunc) Cleanup(req *Request) error {
	return RemoveOutputFiles(req.OutputBase())
}

// ProcessRunner runs the scanner as a child process.
type ProcessRunner struct {
	logger *logging.Logger
}

// NewProcessRunner creates a runner logging to logger, or the default logger if nil.
func NewProcessRunner(logger *logging.Logger) *ProcessRunner {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProcessRunner{logger: logger.WithComponent("runner")}
}

// Run executes the request's command with no stdin and captured output.
func (r *ProcessRunner) Run(req *Request) *Outcome {
	argv := req.Command()
	r.logger.DebugCommand(argv)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv is built from a normalized Request
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	outcome := &Outcome{
		Duration: time.Since(start),
		Stdout:   decodeStream(stdout.Bytes()),
		Stderr:   decodeStream(stderr.Bytes()),
	}

	switch e := err.(type) {
	case nil:
		outcome.Started = true
	case *exec.ExitError:
		outcome.Started = true
		outcome.ExitCode = e.ExitCode()
	default:
		outcome.ExitCode = exitCodeNotStarted
		outcome.Err = errors.ErrSpawnFailed(argv[0], err)
		r.logger.ErrorScan("Error executing scanner", err, "executable", argv[0])
		return outcome
	}

	if outcome.ExitCode != 0 {
		r.logger.ErrorScan("Non-zero return code", errors.ErrNonZeroExit(outcome.ExitCode),
			"exit_code", outcome.ExitCode)
		if outcome.Stderr != "" {
			r.logger.Debug("Scanner stderr", "stderr", outcome.Stderr)
		}
		if outcome.Stdout != "" {
			r.logger.Debug("Scanner stdout", "stdout", outcome.Stdout)
		}
	}

	return outcome
}

// Cleanup removes the report files and logs anything it could not delete.
func (r *ProcessRunner) Cleanup(req *Request) error {
	err := RemoveOutputFiles(req.OutputBase())
	if err != nil {
		r.logger.Warn("Failed to remove scanner output", "output_base", req.OutputBase(), "error", err)
	}
	return err
}

// RemoveOutputFiles deletes base.gnmap, base.nmap and base.xml. Missing
// files are not an error.
func RemoveOutputFiles(base string) error {
	var failed []string
	for _, path := range OutputFiles(base) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("remove output files: %s", strings.Join(failed, "; "))
	}
	return nil
}

func decodeStream(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
