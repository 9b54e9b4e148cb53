package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginflow/backend/internal/models"
	"loginflow/backend/internal/resolver"
)

type call struct {
	op    string
	sel   string
	value string
}

// fakeDriver scripts per-selector behavior and records every dispatch.
type fakeDriver struct {
	calls       []call
	unresolved  map[string]bool
	failClicks  map[string]error
	panicClicks map[string]bool
	notices     []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		unresolved:  make(map[string]bool),
		failClicks:  make(map[string]error),
		panicClicks: make(map[string]bool),
	}
}

func (f *fakeDriver) Resolve(_ context.Context, action models.Action, _ time.Duration) (string, error) {
	sel := action.Selectors[0]
	if f.unresolved[sel] {
		return "", resolver.ErrNotFound
	}
	f.calls = append(f.calls, call{op: "resolve", sel: sel})
	return sel, nil
}

func (f *fakeDriver) ScrollIntoView(_ context.Context, sel string) error {
	f.calls = append(f.calls, call{op: "scroll", sel: sel})
	return nil
}

func (f *fakeDriver) Click(_ context.Context, sel string) error {
	if f.panicClicks[sel] {
		panic("node detached")
	}
	if err := f.failClicks[sel]; err != nil {
		return err
	}
	f.calls = append(f.calls, call{op: "click", sel: sel})
	return nil
}

func (f *fakeDriver) SetValue(_ context.Context, sel, value string) error {
	f.calls = append(f.calls, call{op: "set", sel: sel, value: value})
	return nil
}

func (f *fakeDriver) PressEnter(_ context.Context, sel string) error {
	f.calls = append(f.calls, call{op: "enter", sel: sel})
	return nil
}

func (f *fakeDriver) Notify(_ context.Context, message string) {
	f.notices = append(f.notices, message)
}

func fastOptions() Options {
	return Options{
		StepDelay:      time.Millisecond,
		SettleDelay:    time.Millisecond,
		ResolveTimeout: 10 * time.Millisecond,
	}
}

func loginActions() []models.Action {
	return []models.Action{
		{Kind: models.ActionInput, Selectors: []string{"#email"}, Value: "alice@example.com", FieldKind: models.FieldEmail},
		{Kind: models.ActionInput, Selectors: []string{"#password"}, Value: "hunter2", FieldKind: models.FieldPassword},
		{Kind: models.ActionClick, Selectors: []string{"#submit"}, TagName: "button"},
	}
}

func TestReplayHappyPath(t *testing.T) {
	d := newFakeDriver()
	engine := NewEngine(d, fastOptions())

	result := engine.Replay(context.Background(), loginActions())

	assert.Equal(t, 3, result.TotalSteps)
	assert.Equal(t, 3, result.PassedSteps)
	assert.Zero(t, result.FailedSteps)
	assert.False(t, result.Cancelled)

	var dispatched []string
	for _, c := range d.calls {
		if c.op != "resolve" && c.op != "scroll" {
			dispatched = append(dispatched, c.op+" "+c.sel)
		}
	}
	assert.Equal(t, []string{"set #email", "set #password", "click #submit"}, dispatched,
		"replay preserves recorded order")
	assert.Contains(t, d.notices, "Login replay finished")
}

func TestReplayContinuesPastMissingElement(t *testing.T) {
	d := newFakeDriver()
	d.unresolved["#password"] = true
	engine := NewEngine(d, fastOptions())

	result := engine.Replay(context.Background(), loginActions())

	assert.Equal(t, 2, result.PassedSteps)
	assert.Equal(t, 1, result.FailedSteps)
	assert.Zero(t, result.Skipped, "failure is per-step, later steps still run")

	var dispatched []string
	for _, c := range d.calls {
		if c.op == "set" || c.op == "click" {
			dispatched = append(dispatched, c.op+" "+c.sel)
		}
	}
	assert.Equal(t, []string{"set #email", "click #submit"}, dispatched)
	require.NotEmpty(t, d.notices)
	assert.Contains(t, d.notices[0], "element not found")
}

func TestReplayContinuesPastDispatchError(t *testing.T) {
	d := newFakeDriver()
	d.failClicks["#submit"] = errors.New("node is obscured")
	engine := NewEngine(d, fastOptions())

	actions := append(loginActions(),
		models.Action{Kind: models.ActionEnter, Selectors: []string{"#password"}})
	result := engine.Replay(context.Background(), actions)

	assert.Equal(t, 3, result.PassedSteps)
	assert.Equal(t, 1, result.FailedSteps)

	last := d.calls[len(d.calls)-1]
	assert.Equal(t, "enter", last.op, "step after the failed click still dispatched")
}

func TestReplayRecoversFromDispatchPanic(t *testing.T) {
	d := newFakeDriver()
	d.panicClicks["#submit"] = true
	engine := NewEngine(d, fastOptions())

	actions := append(loginActions(),
		models.Action{Kind: models.ActionEnter, Selectors: []string{"#password"}})
	result := engine.Replay(context.Background(), actions)

	assert.Equal(t, 1, result.FailedSteps)
	assert.Equal(t, 3, result.PassedSteps)
}

func TestReplayCancellation(t *testing.T) {
	d := newFakeDriver()
	engine := NewEngine(d, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := engine.Replay(ctx, loginActions())

	assert.True(t, result.Cancelled)
	assert.Equal(t, 3, result.Skipped)
	assert.Zero(t, result.PassedSteps)
	assert.Empty(t, d.calls)
}

func TestReplayCancelledDuringStepDelayIsLogged(t *testing.T) {
	d := newFakeDriver()
	opts := fastOptions()
	opts.StepDelay = 200 * time.Millisecond
	engine := NewEngine(d, opts)

	// Cancel while the engine sleeps ahead of the first step.
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	result := engine.Replay(ctx, loginActions())

	assert.True(t, result.Cancelled)
	assert.Equal(t, 3, result.Skipped)
	assert.Empty(t, d.calls)

	require.NotEmpty(t, result.Logs, "a cancelled run still records why it stopped")
	last := result.Logs[len(result.Logs)-1]
	assert.Contains(t, last.Message, "replay cancelled before step 1/3")
	assert.Equal(t, StepSkipped, last.StepStatus)
}

func TestReplayLogsMaskPasswordValues(t *testing.T) {
	d := newFakeDriver()
	engine := NewEngine(d, fastOptions())

	result := engine.Replay(context.Background(), loginActions())

	for _, entry := range result.Logs {
		assert.NotContains(t, entry.Message, "hunter2")
		assert.NotContains(t, entry.ErrorDetail, "hunter2")
	}
}

func TestReplayUnknownKindFailsStepOnly(t *testing.T) {
	d := newFakeDriver()
	engine := NewEngine(d, fastOptions())

	actions := []models.Action{
		{Kind: "hover", Selectors: []string{"#menu"}},
		{Kind: models.ActionClick, Selectors: []string{"#submit"}, TagName: "button"},
	}
	result := engine.Replay(context.Background(), actions)

	assert.Equal(t, 1, result.FailedSteps)
	assert.Equal(t, 1, result.PassedSteps)
}
