package board

import (
	"communityTasks/internal/models/task"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	taskAliceOpen   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	taskAliceReview = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	taskBobOpen     = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	taskBobWork     = uuid.MustParse("44444444-4444-4444-4444-444444444444")

	appBobPending     = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	appCarolSubmitted = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	appAliceWork      = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003")
)

// fakeAPI хранит задачи и отклики в памяти и считает вызовы.
// statusGate и appsGate, если заданы, задерживают ответ до закрытия канала.
type fakeAPI struct {
	mu     sync.Mutex
	viewer string
	tasks  []*task.Task
	apps   []*task.Application
	calls  map[string]int

	bids       []*decimal.Decimal
	reviews    []task.DeliveryStatus
	ratings    []int
	deliveries []string

	listErr     error
	applyErr    error
	statusErr   error
	reviewErr   error
	rateErr     error
	deliveryErr error

	statusGate chan struct{}
	appsGate   chan struct{}
}

func newFakeAPI(viewer string) *fakeAPI {
	now := time.Now().UTC()
	mk := func(id uuid.UUID, owner string, cost string, status task.Status) *task.Task {
		return &task.Task{
			UUID:      id,
			Title:     "task " + id.String()[:4],
			Cost:      decimal.RequireFromString(cost),
			Priority:  task.PriorityNormal,
			Status:    status,
			CreatedBy: owner,
			CreatedAt: now,
			Version:   1,
		}
	}
	return &fakeAPI{
		viewer: viewer,
		calls:  make(map[string]int),
		tasks: []*task.Task{
			mk(taskAliceOpen, "alice", "100", task.StatusOpen),
			mk(taskAliceReview, "alice", "40", task.StatusDeliveryReview),
			mk(taskBobOpen, "bob", "250.50", task.StatusOpen),
			mk(taskBobWork, "bob", "75", task.StatusInProgress),
		},
		apps: []*task.Application{
			{
				UUID: appBobPending, TaskID: taskAliceOpen, ApplicantID: "bob", Message: "I can do it",
				BidAmount: decimal.RequireFromString("90"), Status: task.ApplicationPending,
				DeliveryStatus: task.DeliveryNone, CreatedAt: now, Version: 1,
			},
			{
				UUID: appCarolSubmitted, TaskID: taskAliceReview, ApplicantID: "carol", Message: "done before",
				BidAmount: decimal.RequireFromString("40"), Status: task.ApplicationAccepted,
				DeliveryStatus: task.DeliverySubmitted, DeliveryContent: "https://example.org/result",
				CreatedAt: now, Version: 3,
			},
			{
				UUID: appAliceWork, TaskID: taskBobWork, ApplicantID: "alice", Message: "on it",
				BidAmount: decimal.RequireFromString("75"), Status: task.ApplicationAccepted,
				DeliveryStatus: task.DeliveryNone, CreatedAt: now, Version: 2,
			},
		},
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) enter(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func wait(gate chan struct{}) {
	if gate != nil {
		<-gate
	}
}

func (f *fakeAPI) findApp(id uuid.UUID) *task.Application {
	for _, a := range f.apps {
		if a.UUID == id {
			return a
		}
	}
	return nil
}

func (f *fakeAPI) ListCommunityTasks(ctx context.Context) ([]*task.Task, error) {
	f.enter("ListCommunityTasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	res := make([]*task.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		res = append(res, t.Clone())
	}
	return res, nil
}

func (f *fakeAPI) ListMyTasks(ctx context.Context) ([]*task.Task, error) {
	f.enter("ListMyTasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var res []*task.Task
	for _, t := range f.tasks {
		if t.CreatedBy != f.viewer {
			continue
		}
		c := t.Clone()
		for _, a := range f.apps {
			if a.TaskID == t.UUID {
				c.Applications = append(c.Applications, *a.Clone())
			}
		}
		res = append(res, c)
	}
	return res, nil
}

func (f *fakeAPI) ListMyApplications(ctx context.Context) ([]*task.Application, error) {
	f.enter("ListMyApplications")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var res []*task.Application
	for _, a := range f.apps {
		if a.ApplicantID == f.viewer {
			res = append(res, a.Clone())
		}
	}
	return res, nil
}

func (f *fakeAPI) Apply(ctx context.Context, taskID uuid.UUID, message string, bid *decimal.Decimal) (*task.Application, error) {
	f.enter("Apply")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bids = append(f.bids, bid)
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	a := &task.Application{
		UUID: uuid.New(), TaskID: taskID, ApplicantID: f.viewer, Message: message,
		Status: task.ApplicationPending, DeliveryStatus: task.DeliveryNone, Version: 1,
	}
	if bid != nil {
		a.BidAmount = *bid
	}
	f.apps = append(f.apps, a)
	return a.Clone(), nil
}

func (f *fakeAPI) ListApplications(ctx context.Context, taskID uuid.UUID) ([]*task.Application, error) {
	f.enter("ListApplications")
	f.mu.Lock()
	gate := f.appsGate
	f.mu.Unlock()
	wait(gate)

	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*task.Application
	for _, a := range f.apps {
		if a.TaskID == taskID {
			res = append(res, a.Clone())
		}
	}
	return res, nil
}

func (f *fakeAPI) UpdateApplicationStatus(ctx context.Context, appID uuid.UUID, status task.ApplicationStatus) (*task.Application, error) {
	f.enter("UpdateApplicationStatus")
	f.mu.Lock()
	gate := f.statusGate
	f.mu.Unlock()
	wait(gate)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	a := f.findApp(appID)
	a.Status = status
	a.Version++
	return a.Clone(), nil
}

func (f *fakeAPI) SubmitDelivery(ctx context.Context, appID uuid.UUID, content string) (*task.Application, error) {
	f.enter("SubmitDelivery")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, content)
	if f.deliveryErr != nil {
		return nil, f.deliveryErr
	}
	a := f.findApp(appID)
	a.DeliveryStatus = task.DeliverySubmitted
	a.DeliveryContent = content
	return a.Clone(), nil
}

func (f *fakeAPI) ReviewDelivery(ctx context.Context, appID uuid.UUID, decision task.DeliveryStatus, feedback string) (*task.Application, error) {
	f.enter("ReviewDelivery")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, decision)
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	a := f.findApp(appID)
	a.DeliveryStatus = decision
	a.DeliveryFeedback = feedback
	return a.Clone(), nil
}

func (f *fakeAPI) RateUser(ctx context.Context, appID uuid.UUID, rating int) (*task.Application, error) {
	f.enter("RateUser")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings = append(f.ratings, rating)
	if f.rateErr != nil {
		return nil, f.rateErr
	}
	a := f.findApp(appID)
	a.Rating = &rating
	return a.Clone(), nil
}

type recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

func (r *recorder) bySeverity(sev Severity) []Notification {
	var res []Notification
	for _, n := range r.all() {
		if n.Severity == sev {
			res = append(res, n)
		}
	}
	return res
}

// newLoadedSession создаёт сессию пользователя viewer и выполняет первую загрузку
func newLoadedSession(t *testing.T, viewer string) (*fakeAPI, *Session, *recorder) {
	t.Helper()
	api := newFakeAPI(viewer)
	rec := &recorder{}
	s := NewSession(context.Background(), api, viewer, WithNotifier(rec))
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background()))
	return api, s, rec
}
