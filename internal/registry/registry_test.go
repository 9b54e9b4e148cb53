package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginflow/backend/internal/models"
)

func TestHostnameFromURL(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"https://app.example.com/login?next=/home", "app.example.com", false},
		{"http://localhost:3000/signin", "localhost", false},
		{"https://example.com", "example.com", false},
		{"not a url at all", "", true},
		{"", "", true},
		{"/relative/path", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := HostnameFromURL(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDisplayCredentials(t *testing.T) {
	actions := []models.Action{
		{Kind: models.ActionClick, Selectors: []string{"#open"}},
		{Kind: models.ActionInput, Selectors: []string{"#email"}, Value: "alice@example.com", FieldKind: models.FieldEmail},
		{Kind: models.ActionInput, Selectors: []string{"#password"}, Value: "hunter2", FieldKind: models.FieldPassword},
		{Kind: models.ActionInput, Selectors: []string{"#otp"}, Value: "123456", FieldKind: models.FieldText},
		{Kind: models.ActionEnter, Selectors: []string{"#password"}},
	}

	username, password := DisplayCredentials(actions)
	assert.Equal(t, "alice@example.com", username, "first non-password input wins")
	assert.Equal(t, "hunter2", password)
}

func TestDisplayCredentialsWithoutInputs(t *testing.T) {
	username, password := DisplayCredentials([]models.Action{
		{Kind: models.ActionClick, Selectors: []string{"#sso"}},
	})
	assert.Empty(t, username)
	assert.Empty(t, password)
}

func TestSaveReplacesExistingHostnameRecord(t *testing.T) {
	firstActions := []models.Action{
		{Kind: models.ActionInput, Selectors: []string{"#email"}, Value: "alice@example.com", FieldKind: models.FieldEmail},
		{Kind: models.ActionClick, Selectors: []string{"#submit"}, TagName: "button"},
	}
	existing, err := buildRecord("https://app.example.com/login", firstActions, 1)
	require.NoError(t, err)
	existing.ID = 7
	existing.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	secondActions := []models.Action{
		{Kind: models.ActionInput, Selectors: []string{"#user"}, Value: "bob@example.com", FieldKind: models.FieldEmail},
		{Kind: models.ActionInput, Selectors: []string{"#pass"}, Value: "s3cret", FieldKind: models.FieldPassword},
		{Kind: models.ActionEnter, Selectors: []string{"#pass"}},
	}
	replacement, err := buildRecord("https://app.example.com/signin", secondActions, 2)
	require.NoError(t, err)
	require.Equal(t, existing.Hostname, replacement.Hostname, "both saves key on the same hostname")

	adoptRow(replacement, existing)

	// Same primary key means Save updates the stored row, so one record
	// remains per hostname.
	assert.Equal(t, uint(7), replacement.ID)
	assert.Equal(t, existing.CreatedAt, replacement.CreatedAt)

	// Everything else comes from the new recording.
	restored, err := replacement.GetActions()
	require.NoError(t, err)
	require.Len(t, restored, 3)
	assert.Equal(t, []string{"#user"}, restored[0].Selectors)
	assert.Equal(t, "https://app.example.com/signin", replacement.URL)
	assert.Equal(t, "bob@example.com", replacement.Username)
	assert.Equal(t, uint(2), replacement.UserID)
	assert.True(t, replacement.RecordedAt.After(existing.CreatedAt))
}

func TestActionRoundTripThroughSiteRecord(t *testing.T) {
	original := []models.Action{
		{
			Kind:         models.ActionInput,
			TimeOffsetMs: 1250,
			Selectors:    []string{"#email", `input[name="email"]`, `input[type="email"]`},
			Value:        "alice@example.com",
			FieldKind:    models.FieldEmail,
			TagName:      "input",
			Label:        "Email address",
		},
		{
			Kind:         models.ActionClick,
			TimeOffsetMs: 3400,
			Selectors:    []string{`button[type="submit"]`},
			TagName:      "button",
			Coordinates:  map[string]interface{}{"x": 120.0, "y": 42.0},
		},
	}

	var record models.SiteRecord
	require.NoError(t, record.SetActions(original))

	// Simulate the trip through the persistence column.
	var stored models.SiteRecord
	stored.Actions = record.Actions
	restored, err := stored.GetActions()
	require.NoError(t, err)
	require.Len(t, restored, 2)

	assert.Equal(t, original[0].Selectors, restored[0].Selectors)
	assert.Equal(t, original[0].Kind, restored[0].Kind)
	assert.Equal(t, original[0].Value, restored[0].Value)
	assert.Equal(t, original[1].Selectors, restored[1].Selectors)
	assert.Equal(t, original[1].Kind, restored[1].Kind)
}

func TestActionWireFormat(t *testing.T) {
	a := models.Action{
		Kind:      models.ActionClick,
		Selectors: []string{"#go"},
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	// Value-only fields stay off the wire for non-input actions.
	assert.NotContains(t, string(data), "value")
	assert.NotContains(t, string(data), "field_kind")
	assert.Contains(t, string(data), `"selectors":["#go"]`)
}
