package scanning

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/metrics"
)

const (
	// DefaultExecutable is the scanner looked up on PATH when none is given.
	DefaultExecutable = "nmap"

	// outputAllFlag asks nmap for normal, XML and grepable output at once.
	outputAllFlag = "-oA"

	outputBasePrefix = "scanwrap-"
)

// Report file extensions written by -oA.
const (
	ExtXML   = ".xml"
	ExtNmap  = ".nmap"
	ExtGnmap = ".gnmap"
)

// NameGenerator returns a fresh output base path on every call.
type NameGenerator func() string

// TempNameGenerator places output bases in dir, or the system temp
// directory when dir is empty. Each base carries a random UUID.
func TempNameGenerator(dir string) NameGenerator {
	return func() string {
		root := dir
		if root == "" {
			root = os.TempDir()
		}
		return filepath.Join(root, outputBasePrefix+uuid.NewString())
	}
}

// ResolveExecutable searches PATH for name and falls back to the bare name,
// so a missing scanner only fails once the process is launched.
func ResolveExecutable(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

// options collects request and session settings.
type options struct {
	executable string
	args       []string
	names      NameGenerator
	runner     Runner
	recorder   metrics.Recorder
	logger     *logging.Logger
}

// Option configures a Request or a Session.
type Option func(*options)

// WithArgs appends extra scanner arguments, passed through untouched.
func WithArgs(args ...string) Option {
	return func(o *options) {
		o.args = append(o.args, args...)
	}
}

// WithExecutable overrides the scanner path instead of searching PATH.
func WithExecutable(path string) Option {
	return func(o *options) {
		o.executable = path
	}
}

// WithNameGenerator sets how the output base is chosen.
func WithNameGenerator(gen NameGenerator) Option {
	return func(o *options) {
		o.names = gen
	}
}

// WithOutputBase pins the output base to a fixed path.
func WithOutputBase(base string) Option {
	return WithNameGenerator(func() string { return base })
}

// WithRunner replaces the process runner used by a Session.
func WithRunner(r Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// WithRecorder sets the metrics recorder used by a Session.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLogger sets the diagnostics logger used by a Session.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.names == nil {
		o.names = TempNameGenerator("")
	}
	if o.recorder == nil {
		o.recorder = metrics.Nop{}
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	return o
}

// Request is an immutable description of one scanner invocation.
type Request struct {
	executable string
	targets    []string
	args       []string
	outputBase string
}

// NewRequest normalizes targets and resolves the executable. A single
// target is simply a one-element slice.
func NewRequest(targets []string, opts ...Option) (*Request, error) {
	return newRequest(targets, buildOptions(opts))
}

func newRequest(targets []string, o *options) (*Request, error) {
	normalized := NormalizeTargets(targets)
	if len(normalized) == 0 {
		return nil, errors.ErrNoTargets().WithContext("targets", targets)
	}

	executable := o.executable
	if executable == "" {
		executable = ResolveExecutable(DefaultExecutable)
	}

	args := make([]string, len(o.args))
	copy(args, o.args)

	return &Request{
		executable: executable,
		targets:    normalized,
		args:       args,
		outputBase: o.names(),
	}, nil
}

// NormalizeTarget trims whitespace and leading hyphens so a target can never
// be read as a scanner flag.
func NormalizeTarget(target string) string {
	trimmed := strings.TrimLeftFunc(target, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	return strings.TrimRightFunc(trimmed, unicode.IsSpace)
}

// NormalizeTargets normalizes every target, drops empty ones and removes
// duplicates keeping the first occurrence.
func NormalizeTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	result := make([]string, 0, len(targets))
	for _, t := range targets {
		n := NormalizeTarget(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

// Executable returns the scanner path or name.
func (r *Request) Executable() string {
	return r.executable
}

// Targets returns a copy of the normalized targets.
func (r *Request) Targets() []string {
	return append([]string(nil), r.targets...)
}

// Args returns a copy of the extra arguments.
func (r *Request) Args() []string {
	return append([]string(nil), r.args...)
}

// OutputBase returns the path prefix the scanner writes its reports to.
func (r *Request) OutputBase() string {
	return r.outputBase
}

// Command returns a fresh argument vector:
// executable, -oA, output base, extra args, then targets.
func (r *Request) Command() []string {
	argv := make([]string, 0, 3+len(r.args)+len(r.targets))
	argv = append(argv, r.executable, outputAllFlag, r.outputBase)
	argv = append(argv, r.args...)
	argv = append(argv, r.targets...)
	return argv
}

// OutputFiles returns the three report paths the scanner is expected to write.
func (r *Request) OutputFiles() []string {
	return OutputFiles(r.outputBase)
}

// OutputFiles returns the report paths for an output base.
func OutputFiles(base string) []string {
	return []string{base + ExtXML, base + ExtNmap, base + ExtGnmap}
}
