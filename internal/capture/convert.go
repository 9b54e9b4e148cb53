package capture

import (
	"strings"
	"time"

	"loginflow/backend/internal/models"
	"loginflow/backend/internal/selector"
)

// RawEvent is the wire shape of one buffered page event, drained from the
// injected capture script.
type RawEvent struct {
	Type      string               `json:"type"`
	Element   selector.ElementInfo `json:"element"`
	Value     string               `json:"value"`
	FieldType string               `json:"field_type"`
	Label     string               `json:"label"`
	Timestamp int64                `json:"timestamp"` // epoch milliseconds
	X         float64              `json:"x"`
	Y         float64              `json:"y"`
}

// toAction converts a raw page event into a replayable action, synthesizing
// the selector candidates from the element snapshot. Returns false for event
// types the recorder does not understand.
func toAction(ev RawEvent, sessionStart time.Time) (models.Action, bool) {
	var kind string
	switch ev.Type {
	case "click":
		kind = models.ActionClick
	case "input":
		kind = models.ActionInput
	case "enter":
		kind = models.ActionEnter
	default:
		return models.Action{}, false
	}

	offset := ev.Timestamp - sessionStart.UnixMilli()
	if offset < 0 {
		offset = 0
	}

	action := models.Action{
		Kind:         kind,
		TimeOffsetMs: offset,
		Selectors:    selector.Synthesize(ev.Element),
		TagName:      strings.ToLower(ev.Element.Tag),
		Label:        ev.Label,
	}

	switch kind {
	case models.ActionInput:
		action.Value = ev.Value
		action.FieldKind = fieldKindFor(ev.FieldType)
	case models.ActionClick:
		action.Coordinates = map[string]interface{}{"x": ev.X, "y": ev.Y}
	}

	return action, true
}

// fieldKindFor maps an input element's type attribute onto the resolver's
// field kinds. Unknown types land in "other" so the username fallback does
// not guess at search boxes or spinners.
func fieldKindFor(fieldType string) string {
	switch strings.ToLower(strings.TrimSpace(fieldType)) {
	case "password":
		return models.FieldPassword
	case "email":
		return models.FieldEmail
	case "", "text":
		return models.FieldText
	default:
		return models.FieldOther
	}
}
