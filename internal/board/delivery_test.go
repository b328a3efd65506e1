package board

import (
	"communityTasks/internal/models/task"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerDeliveryManager_Assignments(t *testing.T) {
	_, s, _ := newLoadedSession(t, "alice")

	assignments := s.Worker.Assignments()
	require.Len(t, assignments, 1)
	assert.Equal(t, appAliceWork, assignments[0].Application.UUID)
	assert.True(t, assignments[0].CanSubmit)

	// у bob только ожидающий отклик
	_, bob, _ := newLoadedSession(t, "bob")
	assert.Empty(t, bob.Worker.Assignments())
	assert.Len(t, bob.Worker.Applications(), 1)
	require.ErrorIs(t, bob.Worker.OpenDelivery(appBobPending), ErrActionDisabled)
}

func TestWorkerDeliveryManager_Submit(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")

	require.ErrorIs(t, s.Worker.OpenDelivery(uuid.New()), ErrNotFound)
	require.ErrorIs(t, s.Worker.Submit(context.Background()), ErrNoModal)

	require.NoError(t, s.Worker.OpenDelivery(appAliceWork))
	assert.Equal(t, ModalDelivery, s.Modal.Current().Kind)
	assert.False(t, s.Worker.CanSubmit())
	require.ErrorIs(t, s.Worker.Submit(context.Background()), ErrActionDisabled)

	s.Worker.SetContent(" https://example.org/pr/42 ")
	assert.True(t, s.Worker.CanSubmit())
	require.NoError(t, s.Worker.Submit(context.Background()))

	assert.Equal(t, []string{"https://example.org/pr/42"}, api.deliveries)
	assert.False(t, s.Modal.IsOpen())
	assert.Empty(t, s.Worker.Content())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleDeliverySubmitted, notes[0].Title)

	assignments := s.Worker.Assignments()
	require.Len(t, assignments, 1)
	assert.Equal(t, task.DeliverySubmitted, assignments[0].Application.DeliveryStatus)
	assert.True(t, assignments[0].CanSubmit)

	// повторная сдача начинается с прошлого текста
	require.NoError(t, s.Worker.OpenDelivery(appAliceWork))
	assert.Equal(t, "https://example.org/pr/42", s.Worker.Content())
}

func TestWorkerDeliveryManager_SubmitFailure(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	api.deliveryErr = errors.New("bad gateway")

	require.NoError(t, s.Worker.OpenDelivery(appAliceWork))
	s.Worker.SetContent("result")

	require.Error(t, s.Worker.Submit(context.Background()))
	assert.Equal(t, ModalDelivery, s.Modal.Current().Kind)
	assert.Equal(t, "result", s.Worker.Content())
	assert.True(t, s.Worker.CanSubmit())

	failures := rec.bySeverity(SeverityError)
	require.Len(t, failures, 1)
	assert.Equal(t, TitleDeliveryFailed, failures[0].Title)
	assert.Equal(t, 1, api.count("ListMyApplications"))
}
