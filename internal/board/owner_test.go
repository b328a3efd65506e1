package board

import (
	"communityTasks/internal/models/task"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOf(views []OwnerTaskView, id string) int {
	for _, v := range views {
		if v.Task.UUID.String() == id {
			return v.Pending
		}
	}
	return -1
}

func TestOwnerTaskManager_Tasks(t *testing.T) {
	_, s, _ := newLoadedSession(t, "alice")

	views := s.Owner.Tasks()
	require.Len(t, views, 2)
	for _, v := range views {
		switch v.Task.UUID {
		case taskAliceOpen:
			assert.Equal(t, 1, v.Pending)
			assert.Zero(t, v.AwaitingReview)
		case taskAliceReview:
			assert.Zero(t, v.Pending)
			assert.Equal(t, 1, v.AwaitingReview)
		default:
			t.Fatalf("чужая задача в списке владельца: %s", v.Task.UUID)
		}
	}
}

func TestOwnerTaskManager_OpenApplications(t *testing.T) {
	api, s, _ := newLoadedSession(t, "alice")

	err := s.Owner.OpenApplications(context.Background(), taskBobOpen)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, api.count("ListApplications"))

	require.NoError(t, s.Owner.OpenApplications(context.Background(), taskAliceOpen))
	apps, loading := s.Owner.Applications()
	assert.False(t, loading)
	require.Len(t, apps, 1)
	assert.Equal(t, appBobPending, apps[0].UUID)
	assert.Equal(t, taskAliceOpen, s.Owner.ApplicationsTask())
	assert.Equal(t, ModalApplications, s.Modal.Current().Kind)

	// загрузка откликов не трогает общий флаг загрузки
	assert.False(t, s.Loading())
}

func TestOwnerTaskManager_DiscardsApplicationsAfterModalClosed(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	api.appsGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- s.Owner.OpenApplications(context.Background(), taskAliceOpen)
	}()
	require.Eventually(t, func() bool { return api.count("ListApplications") == 1 }, time.Second, 5*time.Millisecond)

	_, loading := s.Owner.Applications()
	assert.True(t, loading)

	s.Modal.Close()
	close(api.appsGate)
	require.NoError(t, <-done)

	apps, loading := s.Owner.Applications()
	assert.Empty(t, apps)
	assert.False(t, loading)
	assert.Empty(t, rec.all())
}

func TestOwnerTaskManager_DiscardsApplicationsOfPreviousTask(t *testing.T) {
	api, s, _ := newLoadedSession(t, "alice")
	api.appsGate = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		first <- s.Owner.OpenApplications(context.Background(), taskAliceOpen)
	}()
	require.Eventually(t, func() bool { return api.count("ListApplications") == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		second <- s.Owner.OpenApplications(context.Background(), taskAliceReview)
	}()
	require.Eventually(t, func() bool { return api.count("ListApplications") == 2 }, time.Second, 5*time.Millisecond)

	close(api.appsGate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	apps, loading := s.Owner.Applications()
	assert.False(t, loading)
	require.Len(t, apps, 1)
	assert.Equal(t, appCarolSubmitted, apps[0].UUID)
	assert.Equal(t, taskAliceReview, s.Owner.ApplicationsTask())
}

func TestOwnerTaskManager_AcceptIsOptimistic(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	require.NoError(t, s.Owner.OpenApplications(context.Background(), taskAliceOpen))
	api.statusGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- s.Owner.Accept(context.Background(), appBobPending)
	}()
	require.Eventually(t, func() bool { return s.Owner.InFlight(appBobPending) }, time.Second, 5*time.Millisecond)

	// статус сменился до ответа сервера
	apps, _ := s.Owner.Applications()
	require.Len(t, apps, 1)
	assert.Equal(t, task.ApplicationAccepted, apps[0].Status)
	assert.Zero(t, pendingOf(s.Owner.Tasks(), taskAliceOpen.String()))

	require.ErrorIs(t, s.Owner.Accept(context.Background(), appBobPending), ErrInFlight)
	require.ErrorIs(t, s.Owner.Reject(context.Background(), appBobPending), ErrInFlight)

	close(api.statusGate)
	require.NoError(t, <-done)

	assert.False(t, s.Owner.InFlight(appBobPending))
	assert.Equal(t, 1, api.count("UpdateApplicationStatus"))

	apps, _ = s.Owner.Applications()
	assert.Equal(t, task.ApplicationAccepted, apps[0].Status)
	assert.Equal(t, 2, apps[0].Version)

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleAccepted, notes[0].Title)
	assert.Equal(t, 2, api.count("ListMyTasks"))
}

func TestOwnerTaskManager_FailedAcceptRollsBack(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	require.NoError(t, s.Owner.OpenApplications(context.Background(), taskAliceOpen))
	api.statusErr = errors.New("version conflict")

	err := s.Owner.Accept(context.Background(), appBobPending)
	require.Error(t, err)

	apps, _ := s.Owner.Applications()
	assert.Equal(t, task.ApplicationPending, apps[0].Status)
	assert.Equal(t, 1, pendingOf(s.Owner.Tasks(), taskAliceOpen.String()))
	assert.False(t, s.Owner.InFlight(appBobPending))

	failures := rec.bySeverity(SeverityError)
	require.Len(t, failures, 1)
	assert.Equal(t, TitleStatusFailed, failures[0].Title)
	assert.Contains(t, failures[0].Description, "version conflict")
}

func TestOwnerTaskManager_AcceptOnlyPending(t *testing.T) {
	api, s, _ := newLoadedSession(t, "alice")

	err := s.Owner.Accept(context.Background(), appCarolSubmitted)
	require.ErrorIs(t, err, ErrActionDisabled)

	err = s.Owner.Reject(context.Background(), appAliceWork)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, api.count("UpdateApplicationStatus"))
}

func TestOwnerTaskManager_ResponseAfterCloseIsDropped(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	api.statusGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- s.Owner.Accept(context.Background(), appBobPending)
	}()
	require.Eventually(t, func() bool { return api.count("UpdateApplicationStatus") == 1 }, time.Second, 5*time.Millisecond)

	s.Close()
	close(api.statusGate)

	require.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Empty(t, rec.all())
	assert.Equal(t, 1, api.count("ListMyTasks"))
}

func TestApplicationReviewPanel_AcceptReject(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")

	panel, err := s.Owner.OpenReview(appBobPending)
	require.NoError(t, err)
	assert.Equal(t, ModalReview, s.Modal.Current().Kind)
	assert.True(t, panel.CanAccept())
	assert.True(t, panel.CanReject())
	assert.False(t, panel.CanApprove())
	assert.False(t, panel.CanRequestChanges())

	require.NoError(t, panel.Reject(context.Background()))

	app, err := panel.Application()
	require.NoError(t, err)
	assert.Equal(t, task.ApplicationRejected, app.Status)
	assert.False(t, panel.CanAccept())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleRejected, notes[0].Title)
	assert.Equal(t, 1, api.count("UpdateApplicationStatus"))
}

func TestApplicationReviewPanel_RequestChangesNeedsFeedback(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")

	panel, err := s.Owner.OpenReview(appCarolSubmitted)
	require.NoError(t, err)

	assert.False(t, panel.CanRequestChanges())
	require.ErrorIs(t, panel.RequestChanges(context.Background()), ErrActionDisabled)

	panel.SetFeedback("   ")
	assert.False(t, panel.CanRequestChanges())
	require.ErrorIs(t, panel.RequestChanges(context.Background()), ErrActionDisabled)
	assert.Zero(t, api.count("ReviewDelivery"))

	panel.SetFeedback("Please add the missing pages")
	assert.True(t, panel.CanRequestChanges())
	require.NoError(t, panel.RequestChanges(context.Background()))

	assert.Equal(t, []task.DeliveryStatus{task.DeliveryChangesRequested}, api.reviews)
	assert.Empty(t, api.ratings)
	assert.False(t, s.Modal.IsOpen())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, TitleChangesRequested, notes[0].Title)

	app, err := panel.Application()
	require.NoError(t, err)
	assert.Equal(t, task.DeliveryChangesRequested, app.DeliveryStatus)
	assert.False(t, panel.CanApprove())
}

func TestApplicationReviewPanel_ApproveRatesOnce(t *testing.T) {
	tests := []struct {
		name   string
		rating *int
		want   int
	}{
		{name: "default rating", want: task.DefaultRating},
		{name: "selected rating", rating: ptr(3), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, s, rec := newLoadedSession(t, "alice")

			panel, err := s.Owner.OpenReview(appCarolSubmitted)
			require.NoError(t, err)
			assert.Equal(t, task.DefaultRating, panel.Rating())
			if tt.rating != nil {
				require.NoError(t, panel.SetRating(*tt.rating))
			}

			assert.True(t, panel.CanApprove())
			require.NoError(t, panel.Approve(context.Background()))

			assert.Equal(t, 1, api.count("ReviewDelivery"))
			assert.Equal(t, 1, api.count("RateUser"))
			assert.Equal(t, []task.DeliveryStatus{task.DeliveryApproved}, api.reviews)
			assert.Equal(t, []int{tt.want}, api.ratings)
			assert.False(t, s.Modal.IsOpen())

			notes := rec.all()
			require.Len(t, notes, 1)
			assert.Equal(t, TitleDeliveryApproved, notes[0].Title)

			assert.False(t, panel.CanApprove())
			assert.False(t, panel.CanRate())
		})
	}
}

func TestApplicationReviewPanel_SetRatingRange(t *testing.T) {
	_, s, _ := newLoadedSession(t, "alice")
	panel, err := s.Owner.OpenReview(appCarolSubmitted)
	require.NoError(t, err)

	require.ErrorIs(t, panel.SetRating(0), ErrActionDisabled)
	require.ErrorIs(t, panel.SetRating(6), ErrActionDisabled)
	assert.Equal(t, task.DefaultRating, panel.Rating())

	require.NoError(t, panel.SetRating(1))
	assert.Equal(t, 1, panel.Rating())
}

func TestApplicationReviewPanel_ReviewFailureSkipsRating(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	api.reviewErr = errors.New("forbidden")

	panel, err := s.Owner.OpenReview(appCarolSubmitted)
	require.NoError(t, err)

	require.Error(t, panel.Approve(context.Background()))

	assert.Equal(t, 1, api.count("ReviewDelivery"))
	assert.Zero(t, api.count("RateUser"))
	assert.Equal(t, ModalReview, s.Modal.Current().Kind)
	assert.False(t, panel.Submitting())

	failures := rec.bySeverity(SeverityError)
	require.Len(t, failures, 1)
	assert.Equal(t, TitleReviewFailed, failures[0].Title)
}

func TestApplicationReviewPanel_RatingFailureCanBeRetried(t *testing.T) {
	api, s, rec := newLoadedSession(t, "alice")
	api.rateErr = errors.New("timeout")

	panel, err := s.Owner.OpenReview(appCarolSubmitted)
	require.NoError(t, err)

	require.Error(t, panel.Approve(context.Background()))
	assert.Equal(t, []task.DeliveryStatus{task.DeliveryApproved}, api.reviews)
	assert.Equal(t, []int{task.DefaultRating}, api.ratings)

	failures := rec.bySeverity(SeverityError)
	require.Len(t, failures, 1)
	assert.Equal(t, TitleRatingFailed, failures[0].Title)

	assert.True(t, panel.CanRate())
	api.mu.Lock()
	api.rateErr = nil
	api.mu.Unlock()

	require.NoError(t, panel.Rate(context.Background()))
	assert.Equal(t, 1, api.count("ReviewDelivery"))
	assert.Equal(t, 2, api.count("RateUser"))
	assert.False(t, panel.CanRate())
}
