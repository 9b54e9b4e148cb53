package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginflow/backend/internal/models"
)

func TestPasswordFallback(t *testing.T) {
	action := models.Action{
		Kind:      models.ActionInput,
		Selectors: []string{"#pw-field-gone"},
		FieldKind: models.FieldPassword,
	}
	got := FallbackSelectors(action)
	require.Equal(t, []string{`input[type="password"]`}, got)
	assert.False(t, ExcludesPassword(action))
}

func TestUsernameFallbackExcludesPassword(t *testing.T) {
	action := models.Action{
		Kind:      models.ActionInput,
		Selectors: []string{"#email-gone"},
		FieldKind: models.FieldEmail,
	}
	got := FallbackSelectors(action)
	require.NotEmpty(t, got)
	assert.Equal(t, `input[type="email"]`, got[0], "email patterns lead the priority list")
	for _, sel := range got {
		assert.NotContains(t, sel, "password")
	}
	assert.True(t, ExcludesPassword(action))
}

func TestSubmitFallbackOnlyForSubmitLikeTags(t *testing.T) {
	button := models.Action{Kind: models.ActionClick, Selectors: []string{"#go"}, TagName: "button"}
	got := FallbackSelectors(button)
	require.NotEmpty(t, got)
	assert.Equal(t, `button[type="submit"]`, got[0])

	link := models.Action{Kind: models.ActionClick, Selectors: []string{"#nav"}, TagName: "a"}
	assert.Nil(t, FallbackSelectors(link), "plain links get no submit guessing")
}

func TestEnterActionsHaveNoFallback(t *testing.T) {
	action := models.Action{Kind: models.ActionEnter, Selectors: []string{"#email"}}
	assert.Nil(t, FallbackSelectors(action))
}

func TestProbeExprEmbedsCandidatesInOrder(t *testing.T) {
	action := models.Action{
		Kind:      models.ActionInput,
		Selectors: []string{"#email", `input[name="email"]`},
		FieldKind: models.FieldEmail,
	}
	expr := ProbeExpr(action)

	assert.Contains(t, expr, `["#email","input[name=\"email\"]"]`)
	assert.Contains(t, expr, `input[type=\"email\"]`)
	assert.Contains(t, expr, "getClientRects", "visibility gate is part of the probe")
	assert.Contains(t, expr, "true);", "username probes exclude password inputs")
}

func TestProbeFuncIsAFunctionDeclaration(t *testing.T) {
	action := models.Action{Kind: models.ActionClick, Selectors: []string{"#go"}, TagName: "button"}
	fn := ProbeFunc(action)
	assert.True(t, len(fn) > 0 && fn[0] != '(', "poll predicate must be a bare function")
	assert.Contains(t, fn, "function()")
	assert.Contains(t, fn, "false);", "click probes do not filter password inputs")
}
