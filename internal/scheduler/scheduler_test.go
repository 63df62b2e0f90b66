package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/scanning"
)

const twoHostXML = `<nmaprun>
  <host><status state="up"/><address addr="192.0.2.1"/></host>
  <host><status state="down"/><address addr="192.0.2.2"/></host>
</nmaprun>`

type recordingSink struct {
	mu       sync.Mutex
	sessions []string
	err      error
}

func (r *recordingSink) SaveReport(_ context.Context, sessionID string, _ *scanning.Report) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, sessionID)
	return uuid.New(), r.err
}

// stubFactory builds sessions whose runner writes xmlText instead of
// launching nmap.
func stubFactory(t *testing.T, xmlText string, calls *[][]string) SessionFactory {
	t.Helper()
	dir := t.TempDir()
	var mu sync.Mutex
	return func(targets, args []string) (*scanning.Session, error) {
		mu.Lock()
		*calls = append(*calls, append(append([]string{}, targets...), args...))
		mu.Unlock()

		runner := scanning.RunnerFunc(func(req *scanning.Request) *scanning.Outcome {
			_ = os.WriteFile(req.OutputBase()+scanning.ExtXML, []byte(xmlText), 0o600)
			return &scanning.Outcome{Started: true}
		})
		return scanning.NewSession(targets,
			scanning.WithArgs(args...),
			scanning.WithRunner(runner),
			scanning.WithNameGenerator(scanning.TempNameGenerator(dir)),
			scanning.WithLogger(logging.Discard()))
	}
}

func TestAddJob(t *testing.T) {
	var calls [][]string
	s := NewScheduler(scanning.NewLimiter(1), stubFactory(t, twoHostXML, &calls), nil)

	require.NoError(t, s.AddJob(config.JobConfig{Name: "hourly", Cron: "@hourly", Targets: []string{"192.0.2.1"}}))
	require.NoError(t, s.AddJob(config.JobConfig{Name: "alpha", Cron: "*/5 * * * *", Targets: []string{"192.0.2.2"}}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "alpha", jobs[0].Name)
	assert.Equal(t, "hourly", jobs[1].Name)
	assert.False(t, jobs[0].NextRun.IsZero())

	tests := []struct {
		name string
		job  config.JobConfig
	}{
		{"duplicate name", config.JobConfig{Name: "hourly", Cron: "@daily", Targets: []string{"x"}}},
		{"bad cron", config.JobConfig{Name: "bad", Cron: "not a cron", Targets: []string{"x"}}},
		{"no targets", config.JobConfig{Name: "empty", Cron: "@daily", Targets: []string{" ", "--"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.AddJob(tt.job))
		})
	}
	assert.Len(t, s.Jobs(), 2)
}

func TestRemoveJob(t *testing.T) {
	var calls [][]string
	s := NewScheduler(scanning.NewLimiter(1), stubFactory(t, twoHostXML, &calls), nil)
	require.NoError(t, s.AddJob(config.JobConfig{Name: "a", Cron: "@daily", Targets: []string{"x"}}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.Jobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunJob(t *testing.T) {
	var calls [][]string
	sink := &recordingSink{}
	s := NewScheduler(scanning.NewLimiter(1), stubFactory(t, twoHostXML, &calls), sink)

	require.NoError(t, s.AddJob(config.JobConfig{
		Name: "stored", Cron: "@daily", Targets: []string{"192.0.2.0/30"}, Args: []string{"-sn"}, Store: true,
	}))
	require.NoError(t, s.AddJob(config.JobConfig{
		Name: "plain", Cron: "@daily", Targets: []string{"192.0.2.9"},
	}))

	require.NoError(t, s.RunJob("stored"))
	require.NoError(t, s.RunJob("plain"))
	assert.Error(t, s.RunJob("missing"))

	assert.Equal(t, [][]string{{"192.0.2.0/30", "-sn"}, {"192.0.2.9"}}, calls)
	assert.Len(t, sink.sessions, 1)

	for _, job := range s.Jobs() {
		assert.Equal(t, 1, job.Runs, job.Name)
		assert.Equal(t, 2, job.LastHosts, job.Name)
		assert.Empty(t, job.LastError, job.Name)
		assert.False(t, job.Running, job.Name)
		assert.False(t, job.LastRun.IsZero(), job.Name)
	}
}

func TestRunJob_RecordsErrors(t *testing.T) {
	t.Run("sink failure", func(t *testing.T) {
		var calls [][]string
		sink := &recordingSink{err: fmt.Errorf("db down")}
		s := NewScheduler(scanning.NewLimiter(1), stubFactory(t, twoHostXML, &calls), sink)
		require.NoError(t, s.AddJob(config.JobConfig{Name: "a", Cron: "@daily", Targets: []string{"x"}, Store: true}))

		require.NoError(t, s.RunJob("a"))

		job := s.Jobs()[0]
		assert.Contains(t, job.LastError, "db down")
		assert.Equal(t, 2, job.LastHosts)
	})

	t.Run("factory failure", func(t *testing.T) {
		factory := func(_, _ []string) (*scanning.Session, error) {
			return nil, fmt.Errorf("no scanner")
		}
		s := NewScheduler(scanning.NewLimiter(1), factory, nil)
		require.NoError(t, s.AddJob(config.JobConfig{Name: "a", Cron: "@daily", Targets: []string{"x"}}))

		require.NoError(t, s.RunJob("a"))
		assert.Contains(t, s.Jobs()[0].LastError, "no scanner")
	})

	t.Run("stopped scheduler cancels waiting runs", func(t *testing.T) {
		var calls [][]string
		limiter := scanning.NewLimiter(1)
		s := NewScheduler(limiter, stubFactory(t, twoHostXML, &calls), nil)
		require.NoError(t, s.AddJob(config.JobConfig{Name: "a", Cron: "@daily", Targets: []string{"x"}}))

		require.NoError(t, limiter.Acquire(context.Background(), "held"))
		require.NoError(t, s.Start())
		s.Stop()

		require.NoError(t, s.RunJob("a"))
		assert.Contains(t, s.Jobs()[0].LastError, context.Canceled.Error())
	})
}

func TestStartStop(t *testing.T) {
	var calls [][]string
	s := NewScheduler(scanning.NewLimiter(1), stubFactory(t, twoHostXML, &calls), nil)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	s.Stop()
	s.Stop()
}
