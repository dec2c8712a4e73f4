// internal/pilot/pilot_test.go
package pilot

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/medipilot/internal/audit"
	"github.com/xkilldash9x/medipilot/internal/clock"
	"github.com/xkilldash9x/medipilot/internal/config"
	"github.com/xkilldash9x/medipilot/internal/executor"
	"github.com/xkilldash9x/medipilot/internal/frame"
	"github.com/xkilldash9x/medipilot/internal/humanoid"
	"github.com/xkilldash9x/medipilot/internal/input"
	"github.com/xkilldash9x/medipilot/internal/metrics"
	"github.com/xkilldash9x/medipilot/internal/perception"
	"github.com/xkilldash9x/medipilot/internal/plan"
	"github.com/xkilldash9x/medipilot/internal/terminology"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedPerceiver returns a solid frame, or the queued errors first.
type scriptedPerceiver struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedPerceiver) Perceive(ctx context.Context, _ string, _ int) (frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return frame.Frame{}, err
	}
	return frame.Solid(800, 600, color.White)
}

// scriptedReasoner replays plans in order and repeats the last one.
type scriptedReasoner struct {
	mu           sync.Mutex
	plans        []plan.Plan
	extract      []plan.Plan
	instructions []string
	onInfer      func()
}

func (s *scriptedReasoner) Infer(_ context.Context, _ frame.Frame, instruction string) plan.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = append(s.instructions, instruction)
	if s.onInfer != nil {
		s.onInfer()
	}
	return next(&s.plans)
}

func (s *scriptedReasoner) Extract(context.Context, frame.Frame) plan.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return next(&s.extract)
}

func next(q *[]plan.Plan) plan.Plan {
	p := (*q)[0]
	if len(*q) > 1 {
		*q = (*q)[1:]
	}
	return p
}

type memTrail struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *memTrail) Append(_ context.Context, r audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memTrail) Close() error { return nil }

func (m *memTrail) events() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Event, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Event)
	}
	return out
}

const (
	testPause  = 800 * time.Millisecond
	testSettle = 200 * time.Millisecond
)

type harness struct {
	pilot     *Pilot
	driver    *input.DryRunDriver
	perceiver *scriptedPerceiver
	reasoner  *scriptedReasoner
	sleeper   *clock.Recorder
	trail     *memTrail
	logs      *observer.ObservedLogs
}

func newHarness(t *testing.T, plans []plan.Plan, opts Options, wrap func(*input.DryRunDriver, *zap.Logger) input.Driver) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	d := input.NewDryRunDriver(800, 600, zaptest.NewLogger(t))
	var drv input.Driver = d
	if wrap != nil {
		drv = wrap(d, logger)
	}
	sleeper := &clock.Recorder{}
	trail := &memTrail{}
	h := humanoid.New(config.HumanoidConfig{
		MoveDuration:   300 * time.Millisecond,
		KeyInterval:    100 * time.Millisecond,
		KeyIntervalMin: 35 * time.Millisecond,
	}, rand.New(rand.NewSource(7)), logger)
	exec := executor.New(drv, h, trail, sleeper, executor.Options{PauseInterval: testPause, FocusSettle: testSettle}, logger)

	perceiver := &scriptedPerceiver{}
	reasoner := &scriptedReasoner{plans: plans}
	p, err := New(Deps{
		Perceiver:  perceiver,
		Reasoner:   reasoner,
		Dispatcher: exec,
		Trail:      trail,
		Recorder:   metrics.New(),
		Terms:      terminology.New(nil),
		Sleeper:    sleeper,
	}, opts, logger)
	require.NoError(t, err)
	return &harness{pilot: p, driver: d, perceiver: perceiver, reasoner: reasoner, sleeper: sleeper, trail: trail, logs: logs}
}

func defaultOpts() Options {
	return Options{
		MaxIterations:     100,
		InterCycleDelay:   time.Second,
		PerceptionBackoff: 3 * time.Second,
		CognitionBackoff:  5 * time.Second,
	}
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRunFinishOnFirstCycle(t *testing.T) {
	h := newHarness(t, []plan.Plan{{Thought: "all done", Step: plan.Finish{}}}, defaultOpts(), nil)
	s := h.pilot.NewSession("enter labs")

	report, err := h.pilot.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinished, report.Outcome)
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, s.ID, report.SessionID)
	assert.Empty(t, h.driver.Events())
	assert.Equal(t, []audit.Event{audit.EventPlan, audit.EventSessionEnd}, h.trail.events())
	assert.Equal(t, 1, h.logs.FilterMessage("Session finished.").Len())
}

func TestRunRateLimitedUntilBound(t *testing.T) {
	h := newHarness(t, []plan.Plan{plan.Fail(plan.ErrRateLimit, "429 Too Many Requests")}, defaultOpts(), nil)
	s := h.pilot.NewSession("enter labs")

	report, err := h.pilot.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBoundReached, report.Outcome)
	assert.Equal(t, 100, report.Iterations)

	sleeps := h.sleeper.Sleeps()
	require.Len(t, sleeps, 100)
	for _, d := range sleeps {
		assert.Equal(t, 5*time.Second, d)
	}
	assert.Empty(t, h.driver.Events())
	assert.Equal(t, 100, h.logs.FilterMessage("Inference failed; backing off.").FilterLevelExact(zap.WarnLevel).Len())
	assert.Equal(t, 1, h.logs.FilterMessage("Session stopped at the iteration limit.").Len())
	assert.Equal(t, 0, h.logs.FilterMessage("Session finished.").Len())
}

func TestRunPermanentInferenceFailureLogsError(t *testing.T) {
	opts := defaultOpts()
	opts.MaxIterations = 2
	h := newHarness(t, []plan.Plan{plan.Fail(plan.ErrMalformedResponse, "not json")}, opts, nil)

	report, err := h.pilot.Run(context.Background(), h.pilot.NewSession("task"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBoundReached, report.Outcome)
	assert.Equal(t, 2, h.logs.FilterMessage("Inference failed; backing off.").FilterLevelExact(zap.ErrorLevel).Len())
}

func TestRunOutOfBoundsClickDoesNothing(t *testing.T) {
	opts := defaultOpts()
	opts.MaxIterations = 1
	h := newHarness(t, []plan.Plan{{Step: plan.Click{At: plan.Coordinate{10000, 10000}}}}, opts, nil)

	report, err := h.pilot.Run(context.Background(), h.pilot.NewSession("task"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBoundReached, report.Outcome)
	assert.Empty(t, h.driver.Events())
	assert.Empty(t, h.sleeper.Sleeps(), "an invalid plan continues without delay")
	require.Len(t, h.trail.records, 2)
	assert.Equal(t, []int{10000, 10000}, h.trail.records[0].Coordinate)
}

func TestRunTypeThenFinish(t *testing.T) {
	h := newHarness(t, []plan.Plan{
		{Thought: "Entered WBC", Step: plan.TypeText{At: plan.Coordinate{450, 600}, Text: "7.2"}},
		{Step: plan.Finish{}},
	}, defaultOpts(), nil)
	s := h.pilot.NewSession("Enter WBC 7.2")

	report, err := h.pilot.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinished, report.Outcome)
	assert.Equal(t, 2, report.Iterations)

	var clicks []image.Point
	for _, e := range h.driver.Events() {
		if e.Kind == input.EventClick {
			clicks = append(clicks, e.At)
		}
	}
	assert.Equal(t, []image.Point{image.Pt(450, 600)}, clicks)
	assert.Equal(t, "7.2", h.driver.Typed())

	sleeps := h.sleeper.Sleeps()
	require.NotEmpty(t, sleeps)
	assert.Equal(t, testSettle, sleeps[0])
	assert.Equal(t, time.Second, sleeps[len(sleeps)-1], "inter-cycle delay follows an executed action")

	require.Len(t, h.reasoner.instructions, 2)
	assert.NotContains(t, h.reasoner.instructions[0], "Entered WBC")
	assert.Contains(t, h.reasoner.instructions[1], "Completed steps:\n- Entered WBC")
}

func TestRunPerceptionFaultBacksOff(t *testing.T) {
	opts := defaultOpts()
	h := newHarness(t, []plan.Plan{{Step: plan.Finish{}}}, opts, nil)
	h.perceiver.errs = []error{&perception.StageError{Stage: perception.StageCapture, Err: errors.New("no display")}}

	report, err := h.pilot.Run(context.Background(), h.pilot.NewSession("task"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinished, report.Outcome)
	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeper.Sleeps())
	assert.Len(t, h.reasoner.instructions, 1, "cognition is skipped for a failed perception")
}

func TestRunOperatorAbort(t *testing.T) {
	h := newHarness(t, []plan.Plan{{Step: plan.Click{At: plan.Coordinate{100, 100}}}}, defaultOpts(),
		func(d *input.DryRunDriver, logger *zap.Logger) input.Driver {
			return input.NewFailSafe(d, d, 2, logger)
		})
	h.driver.Warp(image.Pt(0, 599))

	report, err := h.pilot.Run(context.Background(), h.pilot.NewSession("task"))
	require.ErrorIs(t, err, input.ErrOperatorAbort)
	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Equal(t, "operator abort", report.Reason)
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, 1, h.perceiver.calls, "no further cycles after an abort")
	assert.Empty(t, h.driver.Events())
	assert.Equal(t, 1, h.logs.FilterMessage("Session aborted.").Len())
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, []plan.Plan{{Step: plan.Wait{Duration: time.Second}}}, defaultOpts(), nil)
	calls := 0
	h.reasoner.onInfer = func() {
		calls++
		if calls == 3 {
			cancel()
		}
	}

	report, err := h.pilot.Run(ctx, h.pilot.NewSession("task"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Equal(t, "interrupted", report.Reason)
	assert.Equal(t, 3, report.Iterations)

	events := h.trail.events()
	require.NotEmpty(t, events)
	assert.Equal(t, audit.EventSessionEnd, events[len(events)-1])
}

func TestExtract(t *testing.T) {
	t.Run("Retries until findings arrive", func(t *testing.T) {
		h := newHarness(t, []plan.Plan{{Step: plan.Finish{}}}, defaultOpts(), nil)
		h.reasoner.extract = []plan.Plan{
			plan.Fail(plan.ErrConnection, "timeout"),
			{Step: plan.FindingsOnly{}, Findings: []plan.Finding{{Metric: "WBC", Value: "7.2", Unit: "10^9/L"}}},
		}
		s := h.pilot.NewSession("Transcribe the labs.")

		findings, err := h.pilot.Extract(context.Background(), s)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, []time.Duration{5 * time.Second}, h.sleeper.Sleeps())
		assert.True(t, strings.HasPrefix(s.TaskContext, "Transcribe the labs."))
		assert.Contains(t, s.TaskContext, "WBC")
		assert.Contains(t, s.TaskContext, "7.2 10^9/L")
	})

	t.Run("Gives up after the configured attempts", func(t *testing.T) {
		opts := defaultOpts()
		opts.ExtractionAttempts = 2
		h := newHarness(t, []plan.Plan{{Step: plan.Finish{}}}, opts, nil)
		h.reasoner.extract = []plan.Plan{{Step: plan.FindingsOnly{}}}
		s := h.pilot.NewSession("task")

		_, err := h.pilot.Extract(context.Background(), s)
		assert.ErrorIs(t, err, ErrNoFindings)
		assert.Equal(t, "task", s.TaskContext)
		assert.Len(t, h.sleeper.Sleeps(), 1, "no pause after the final attempt")
	})

	t.Run("Perception fault uses the perception backoff", func(t *testing.T) {
		h := newHarness(t, []plan.Plan{{Step: plan.Finish{}}}, defaultOpts(), nil)
		h.perceiver.errs = []error{errors.New("grab failed")}
		h.reasoner.extract = []plan.Plan{{Step: plan.FindingsOnly{}, Findings: []plan.Finding{{Metric: "HGB", Value: "135"}}}}

		_, err := h.pilot.Extract(context.Background(), h.pilot.NewSession("task"))
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeper.Sleeps())
	})
}

func TestSessionRecord(t *testing.T) {
	s := NewSession("  task  ", 0)
	assert.Equal(t, DefaultMaxIterations, s.MaxIterations)
	assert.NotEmpty(t, s.ID)
	s.Record("")
	assert.Equal(t, "task", s.TaskContext)
	s.Record("clicked WBC")
	s.Record("typed 7.2")
	assert.Equal(t, "task\n\nCompleted steps:\n- clicked WBC\n- typed 7.2", s.TaskContext)
}

func TestPerceptionFault(t *testing.T) {
	inner := errors.New("boom")
	f := newPerceptionFault(&perception.StageError{Stage: perception.StageOverlay, Err: inner})
	assert.Equal(t, perception.StageOverlay, f.Stage)
	assert.ErrorIs(t, f, inner)

	var pf *PerceptionFault
	assert.ErrorAs(t, error(f), &pf)
}
