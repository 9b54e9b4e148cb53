package replay

import (
	"context"
	"fmt"
	"log"
	"time"

	"loginflow/backend/internal/models"
)

// Driver abstracts the live page so the engine's sequencing can be tested
// with a fake. The chromedp implementation lives in driver_chromedp.go.
type Driver interface {
	// Resolve maps a stored action onto the current page, returning the
	// selector that matched. resolver.ErrNotFound is a normal miss.
	Resolve(ctx context.Context, action models.Action, timeout time.Duration) (string, error)
	ScrollIntoView(ctx context.Context, sel string) error
	Click(ctx context.Context, sel string) error
	SetValue(ctx context.Context, sel, value string) error
	PressEnter(ctx context.Context, sel string) error
	// Notify shows a best-effort on-page toast. Failures are ignored.
	Notify(ctx context.Context, message string)
}

// Step statuses.
const (
	StepSuccess = "success"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// StepLog is one replay log line, mirrored into ReplayRun.StepLogs.
type StepLog struct {
	Timestamp   time.Time `json:"timestamp"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	StepIndex   int       `json:"step_index"`
	StepKind    string    `json:"step_kind,omitempty"`
	StepStatus  string    `json:"step_status,omitempty"`
	Selector    string    `json:"selector,omitempty"`
	Duration    int64     `json:"duration,omitempty"` // milliseconds
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// Result is the outcome of one replay pass.
type Result struct {
	TotalSteps  int       `json:"total_steps"`
	PassedSteps int       `json:"passed_steps"`
	FailedSteps int       `json:"failed_steps"`
	Skipped     int       `json:"skipped_steps"`
	Cancelled   bool      `json:"cancelled"`
	Logs        []StepLog `json:"logs"`
}

func (r *Result) addLog(level, message string, stepIndex int, kind, status, sel string, duration int64, errDetail string) {
	r.Logs = append(r.Logs, StepLog{
		Timestamp:   time.Now(),
		Level:       level,
		Message:     message,
		StepIndex:   stepIndex,
		StepKind:    kind,
		StepStatus:  status,
		Selector:    sel,
		Duration:    duration,
		ErrorDetail: errDetail,
	})
}

// Options tune replay pacing.
type Options struct {
	// StepDelay throttles between actions; sites with debounced validation
	// or animation mis-handle back-to-back synthetic events.
	StepDelay time.Duration
	// SettleDelay runs after scrolling the target into view.
	SettleDelay time.Duration
	// ResolveTimeout bounds each element resolution.
	ResolveTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		StepDelay:      800 * time.Millisecond,
		SettleDelay:    300 * time.Millisecond,
		ResolveTimeout: 10 * time.Second,
	}
}

// Engine drives a resolved page through a recorded action sequence.
type Engine struct {
	driver Driver
	opts   Options
}

func NewEngine(driver Driver, opts Options) *Engine {
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultOptions().StepDelay
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultOptions().SettleDelay
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultOptions().ResolveTimeout
	}
	return &Engine{driver: driver, opts: opts}
}

// Replay executes the recorded actions strictly in order, one at a time.
// A step whose element never resolves, or whose dispatch blows up, is logged
// and skipped; it never aborts the remaining steps. Cancelling the context
// stops the run between steps and marks the remainder skipped.
func (e *Engine) Replay(ctx context.Context, actions []models.Action) *Result {
	result := &Result{TotalSteps: len(actions)}

	for i, action := range actions {
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Skipped = len(actions) - i
			result.addLog("warn", fmt.Sprintf("replay cancelled before step %d/%d", i+1, len(actions)),
				i, action.Kind, StepSkipped, "", 0, ctx.Err().Error())
			break
		}

		if !sleepCtx(ctx, e.opts.StepDelay) {
			result.Cancelled = true
			result.Skipped = len(actions) - i
			result.addLog("warn", fmt.Sprintf("replay cancelled before step %d/%d", i+1, len(actions)),
				i, action.Kind, StepSkipped, "", 0, ctx.Err().Error())
			break
		}

		stepStart := time.Now()
		log.Printf("replay step %d/%d: %s", i+1, len(actions), describe(action))

		sel, err := e.driver.Resolve(ctx, action, e.opts.ResolveTimeout)
		if err != nil {
			duration := time.Since(stepStart).Milliseconds()
			result.FailedSteps++
			result.addLog("error", fmt.Sprintf("step %d/%d: element not found, skipping", i+1, len(actions)),
				i, action.Kind, StepFailed, firstSelector(action), duration, err.Error())
			e.driver.Notify(ctx, fmt.Sprintf("Step %d skipped: element not found", i+1))
			continue
		}

		if err := e.driver.ScrollIntoView(ctx, sel); err == nil {
			sleepCtx(ctx, e.opts.SettleDelay)
		}

		err = e.dispatch(ctx, action, sel)
		duration := time.Since(stepStart).Milliseconds()
		if err != nil {
			result.FailedSteps++
			result.addLog("error", fmt.Sprintf("step %d/%d failed: %v", i+1, len(actions), err),
				i, action.Kind, StepFailed, sel, duration, err.Error())
			continue
		}

		result.PassedSteps++
		result.addLog("info", fmt.Sprintf("step %d/%d done: %s", i+1, len(actions), describe(action)),
			i, action.Kind, StepSuccess, sel, duration, "")
	}

	if !result.Cancelled {
		e.driver.Notify(ctx, "Login replay finished")
		result.addLog("info", fmt.Sprintf("replay finished: %d passed, %d failed",
			result.PassedSteps, result.FailedSteps), -1, "", "", "", 0, "")
	}
	return result
}

// dispatch performs one action. Driver panics are converted into step
// failures so one broken dispatch cannot take the run down.
func (e *Engine) dispatch(ctx context.Context, action models.Action, sel string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	switch action.Kind {
	case models.ActionClick:
		return e.driver.Click(ctx, sel)
	case models.ActionInput:
		return e.driver.SetValue(ctx, sel, action.Value)
	case models.ActionEnter:
		return e.driver.PressEnter(ctx, sel)
	default:
		return fmt.Errorf("unsupported action kind: %s", action.Kind)
	}
}

func describe(action models.Action) string {
	switch action.Kind {
	case models.ActionClick:
		return "click " + firstSelector(action)
	case models.ActionInput:
		if action.FieldKind == models.FieldPassword {
			return "fill " + firstSelector(action) + " (password)"
		}
		return fmt.Sprintf("fill %s (%d chars)", firstSelector(action), len(action.Value))
	case models.ActionEnter:
		return "press Enter on " + firstSelector(action)
	}
	return action.Kind
}

func firstSelector(action models.Action) string {
	if len(action.Selectors) > 0 {
		return action.Selectors[0]
	}
	return ""
}

// sleepCtx waits d or until ctx is cancelled; reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
