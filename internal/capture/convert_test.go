package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginflow/backend/internal/models"
	"loginflow/backend/internal/selector"
)

func TestToActionInput(t *testing.T) {
	start := time.Now().Add(-2 * time.Second)
	ev := RawEvent{
		Type: "input",
		Element: selector.ElementInfo{
			Tag:  "input",
			ID:   "email",
			Name: "email",
			Type: "email",
		},
		Value:     "alice@example.com",
		FieldType: "email",
		Label:     "Email address",
		Timestamp: time.Now().UnixMilli(),
	}

	action, ok := toAction(ev, start)
	require.True(t, ok)
	assert.Equal(t, models.ActionInput, action.Kind)
	assert.Equal(t, "alice@example.com", action.Value)
	assert.Equal(t, models.FieldEmail, action.FieldKind)
	assert.Equal(t, "#email", action.Selectors[0])
	assert.GreaterOrEqual(t, action.TimeOffsetMs, int64(1900))
	assert.Nil(t, action.Coordinates)
}

func TestToActionClickCarriesCoordinates(t *testing.T) {
	ev := RawEvent{
		Type:      "click",
		Element:   selector.ElementInfo{Tag: "button", ID: "submit"},
		Timestamp: time.Now().UnixMilli(),
		X:         120,
		Y:         42,
	}

	action, ok := toAction(ev, time.Now())
	require.True(t, ok)
	assert.Equal(t, models.ActionClick, action.Kind)
	assert.Equal(t, "button", action.TagName)
	assert.Equal(t, 120.0, action.Coordinates["x"])
	assert.Empty(t, action.Value)
	assert.Empty(t, action.FieldKind)
}

func TestToActionEnter(t *testing.T) {
	ev := RawEvent{
		Type:      "enter",
		Element:   selector.ElementInfo{Tag: "input", ID: "password", Type: "password"},
		Timestamp: time.Now().UnixMilli(),
	}

	action, ok := toAction(ev, time.Now())
	require.True(t, ok)
	assert.Equal(t, models.ActionEnter, action.Kind)
	require.NotEmpty(t, action.Selectors)
	assert.Equal(t, "#password", action.Selectors[0])
}

func TestToActionUnknownTypeDropped(t *testing.T) {
	_, ok := toAction(RawEvent{Type: "scroll"}, time.Now())
	assert.False(t, ok)
}

func TestToActionOffsetNeverNegative(t *testing.T) {
	// Clock skew between the page and the session start must not produce a
	// negative diagnostic offset.
	ev := RawEvent{
		Type:      "click",
		Element:   selector.ElementInfo{Tag: "button"},
		Timestamp: time.Now().Add(-time.Minute).UnixMilli(),
	}
	action, ok := toAction(ev, time.Now())
	require.True(t, ok)
	assert.Zero(t, action.TimeOffsetMs)
}

func TestFieldKindMapping(t *testing.T) {
	cases := map[string]string{
		"password": models.FieldPassword,
		"email":    models.FieldEmail,
		"text":     models.FieldText,
		"":         models.FieldText,
		"Text":     models.FieldText,
		"search":   models.FieldOther,
		"tel":      models.FieldOther,
		"number":   models.FieldOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, fieldKindFor(in), "type %q", in)
	}
}
