package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginflow/backend/internal/models"
)

func clickOn(selectors ...string) models.Action {
	return models.Action{Kind: models.ActionClick, Selectors: selectors}
}

func inputInto(value string, selectors ...string) models.Action {
	return models.Action{
		Kind:      models.ActionInput,
		Selectors: selectors,
		Value:     value,
		FieldKind: models.FieldText,
	}
}

func TestAppendWithoutSessionIsDropped(t *testing.T) {
	s := NewStore()
	_, err := s.Append(clickOn("#login"))
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestStartIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Start("example.com")
	_, err := s.Append(clickOn("#login"))
	require.NoError(t, err)

	// A navigation re-injects the capture layer, which calls Start again.
	snap := s.Start("example.com")
	assert.True(t, snap.IsRecording)
	assert.Equal(t, 1, snap.Count, "duplicate start must not lose captured actions")
	assert.Equal(t, "example.com", snap.Domain)
}

func TestInputMergeReplacesInPlace(t *testing.T) {
	s := NewStore()
	s.Start("example.com")

	_, err := s.Append(clickOn("#open-form"))
	require.NoError(t, err)

	for _, v := range []string{"a", "al", "ali", "alice"} {
		_, err = s.Append(inputInto(v, "#email", `input[name="email"]`))
		require.NoError(t, err)
	}

	count, err := s.Append(clickOn("#submit"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	actions := s.Stop()
	require.Len(t, actions, 3)
	assert.Equal(t, models.ActionClick, actions[0].Kind)
	assert.Equal(t, models.ActionInput, actions[1].Kind)
	assert.Equal(t, "alice", actions[1].Value, "latest edit wins")
	assert.Equal(t, models.ActionClick, actions[2].Kind)
}

func TestInputsWithDifferentSelectorsDoNotMerge(t *testing.T) {
	s := NewStore()
	s.Start("example.com")

	s.Append(inputInto("alice", "#email"))
	s.Append(inputInto("hunter2", "#password"))

	snap := s.State()
	assert.Equal(t, 2, snap.Count)
}

func TestClicksAlwaysAppend(t *testing.T) {
	s := NewStore()
	s.Start("example.com")

	s.Append(clickOn("#next"))
	count, err := s.Append(clickOn("#next"))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "repeated clicks on the same element both replay")
}

func TestOrderPreserved(t *testing.T) {
	s := NewStore()
	s.Start("example.com")

	s.Append(clickOn("#open"))
	s.Append(inputInto("alice", "#email"))
	s.Append(models.Action{Kind: models.ActionEnter, Selectors: []string{"#email"}})

	actions := s.Stop()
	require.Len(t, actions, 3)
	kinds := []string{actions[0].Kind, actions[1].Kind, actions[2].Kind}
	assert.Equal(t, []string{models.ActionClick, models.ActionInput, models.ActionEnter}, kinds)
}

func TestStopClearsSession(t *testing.T) {
	s := NewStore()
	s.Start("example.com")
	s.Append(clickOn("#login"))

	actions := s.Stop()
	assert.Len(t, actions, 1)

	snap := s.State()
	assert.False(t, snap.IsRecording)
	assert.Zero(t, snap.Count)

	_, err := s.Append(clickOn("#login"))
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewStore()
	s.Start("example.com")
	s.Append(inputInto("alice", "#email"))

	snap := s.State()
	snap.Actions[0].Value = "mallory"

	after := s.State()
	assert.Equal(t, "alice", after.Actions[0].Value)
}
