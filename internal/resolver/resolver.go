package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"loginflow/backend/internal/models"
)

// ErrNotFound means the resolve timeout elapsed without a match. It is a
// normal outcome for the replay engine, never a fatal error.
var ErrNotFound = errors.New("element not found")

// DefaultTimeout bounds how long a resolve waits for dynamically rendered
// content before giving up.
const DefaultTimeout = 10 * time.Second

// usernameFallbacks is the fixed priority list tried for non-password input
// actions when every recorded selector misses. The probe additionally skips
// password inputs matched by any of these.
var usernameFallbacks = []string{
	`input[type="email"]`,
	`input[name="email"]`,
	`input[name="username"]`,
	`input[name="login"]`,
	`input[name="user"]`,
	`input[autocomplete="username"]`,
	`input[autocomplete="email"]`,
	`input[id*="email" i]`,
	`input[id*="user" i]`,
	`input[type="text"]`,
}

// passwordFallbacks resolves a lost password field to the first password
// input on the page.
var passwordFallbacks = []string{
	`input[type="password"]`,
}

// submitFallbacks is the fixed priority list tried for click actions on
// submit-style controls.
var submitFallbacks = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button[id*="login" i]`,
	`button[id*="signin" i]`,
	`button[class*="login" i]`,
	`button[class*="submit" i]`,
	`form button`,
}

// FallbackSelectors returns the heuristic candidates tried after every
// recorded selector has missed, or nil when no role-based guess applies.
func FallbackSelectors(action models.Action) []string {
	switch action.Kind {
	case models.ActionInput:
		if action.FieldKind == models.FieldPassword {
			return passwordFallbacks
		}
		return usernameFallbacks
	case models.ActionClick:
		if submitLike(action.TagName) {
			return submitFallbacks
		}
	}
	return nil
}

// ExcludesPassword reports whether the fallback pass for this action must
// skip password inputs. Username/email guesses are broad enough to land on
// a password box otherwise.
func ExcludesPassword(action models.Action) bool {
	return action.Kind == models.ActionInput && action.FieldKind != models.FieldPassword
}

func submitLike(tagName string) bool {
	switch strings.ToLower(tagName) {
	case "button", "input":
		return true
	}
	return false
}

// probeBody is the shared matching logic: try each recorded candidate in
// order, then the fallbacks, accepting only elements with a rendered layout
// box. Returns the winning selector string or ''.
const probeBody = `
	const visible = (el) => !!el && el.getClientRects().length > 0;
	const tryList = (sels, excludePassword) => {
		for (const sel of sels) {
			let nodes;
			try { nodes = document.querySelectorAll(sel); } catch (e) { continue; }
			for (const el of nodes) {
				if (excludePassword && el.type === 'password') continue;
				if (visible(el)) return sel;
			}
		}
		return '';
	};
	return tryList(%s, false) || tryList(%s, %t);
`

// ProbeExpr builds the immediately-evaluated probe for one action.
func ProbeExpr(action models.Action) string {
	return "(() => {" + probeCore(action) + "})()"
}

// ProbeFunc builds the probe as a predicate function declaration for
// mutation-driven polling.
func ProbeFunc(action models.Action) string {
	return "function() {" + probeCore(action) + "}"
}

func probeCore(action models.Action) string {
	selectors := action.Selectors
	if selectors == nil {
		selectors = []string{}
	}
	fallbackList := FallbackSelectors(action)
	if fallbackList == nil {
		fallbackList = []string{}
	}
	candidates, _ := json.Marshal(selectors)
	fallbacks, _ := json.Marshal(fallbackList)
	return fmt.Sprintf(probeBody, string(candidates), string(fallbacks), ExcludesPassword(action))
}

// Resolve finds the live element for a stored action on the current page and
// returns the selector that matched it.
//
// Two passes always run: an immediate check first, because the element may
// already be present before any observer attaches, then a mutation-observer
// driven re-check loop for pages that render the login form after an async
// fetch. The timeout is a miss (ErrNotFound), not a failure.
func Resolve(ctx context.Context, action models.Action, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var matched string
	if err := chromedp.Run(ctx, chromedp.Evaluate(ProbeExpr(action), &matched)); err == nil && matched != "" {
		return matched, nil
	}

	err := chromedp.Run(ctx, chromedp.PollFunction(ProbeFunc(action), &matched,
		chromedp.WithPollingMutation(),
		chromedp.WithPollingTimeout(timeout),
	))
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("resolve probe failed: %w", err)
	}
	if matched == "" {
		return "", ErrNotFound
	}
	return matched, nil
}
