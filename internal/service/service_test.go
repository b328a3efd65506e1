package service_test

import (
	"communityTasks/internal/models/task"
	repo "communityTasks/internal/repository"
	"communityTasks/internal/service"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository - мок репозитория
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetStatusedWithLimit(ctx context.Context, page, limit int, status task.Status) ([]*task.Task, error) {
	args := m.Called(ctx, page, limit, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetOwnedWithLimit(ctx context.Context, page, limit int, owner string) ([]*task.Task, error) {
	args := m.Called(ctx, page, limit, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetOpenTasksDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error) {
	args := m.Called(ctx, deadline, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) CreateApplication(ctx context.Context, a *task.Application) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockTaskRepository) UpdateApplication(ctx context.Context, a *task.Application) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockTaskRepository) GetApplicationByID(ctx context.Context, id uuid.UUID) (*task.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Application), args.Error(1)
}

func (m *MockTaskRepository) GetApplicationsByTask(ctx context.Context, id uuid.UUID) ([]*task.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Application), args.Error(1)
}

func (m *MockTaskRepository) GetApplicationsByApplicant(ctx context.Context, page, limit int, applicant string) ([]*task.Application, error) {
	args := m.Called(ctx, page, limit, applicant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Application), args.Error(1)
}

func (m *MockTaskRepository) SaveTransition(ctx context.Context, t *task.Task, a *task.Application) error {
	args := m.Called(ctx, t, a)
	return args.Error(0)
}

func (m *MockTaskRepository) RatingSummary(ctx context.Context, userID string) (task.RatingSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(task.RatingSummary), args.Error(1)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)

func openTask(owner string) *task.Task {
	return &task.Task{
		UUID:      uuid.New(),
		Title:     "Fix the fence",
		Cost:      decimal.NewFromInt(100),
		Priority:  task.PriorityNormal,
		Status:    task.StatusOpen,
		CreatedBy: owner,
		Version:   1,
	}
}

func pendingApplication(t *task.Task, applicant string) *task.Application {
	return &task.Application{
		UUID:           uuid.New(),
		TaskID:         t.UUID,
		ApplicantID:    applicant,
		Message:        "I can do it",
		BidAmount:      t.Cost,
		Status:         task.ApplicationPending,
		DeliveryStatus: task.DeliveryNone,
		Version:        1,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var busErr *service.BusinessError
	require.True(t, errors.As(err, &busErr), "Expected BusinessError, got %v", err)
	assert.Equal(t, code, busErr.Code)
}

// TestTaskService_HealthCheck тестирует HealthCheck
func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockTaskRepository)
		expectError bool
	}{
		{
			name: "success - health check passes",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectError: false,
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("db connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			svc := service.NewTaskService(mockRepo, service.InMemoryType)
			err := svc.HealthCheck(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "проверка здоровья сервиса")
			} else {
				assert.NoError(t, err)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

// TestTaskService_CreateTask тестирует создание задачи с опциями
func TestTaskService_CreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("success - options applied, invalid ones skipped", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockRepo.On("CreateTask", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
			return t.Title == "Paint" && t.CreatedBy == "alice" && t.Status == task.StatusOpen &&
				t.Priority == task.PriorityHigh && t.Cost.Equal(decimal.NewFromInt(40))
		})).Return(nil)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		result, err := svc.CreateTask(ctx, "alice", "Paint",
			task.WithCost(decimal.NewFromInt(40)),
			task.WithPriority("high"),
			task.WithPriority("bogus"))

		require.NoError(t, err)
		assert.Equal(t, task.PriorityHigh, result.Priority)
		mockRepo.AssertExpectations(t)
	})

	t.Run("error - cost does not fit money column", func(t *testing.T) {
		for _, raw := range []string{"1e20", "10000000000", "0.001"} {
			mockRepo := new(MockTaskRepository)
			svc := service.NewTaskService(mockRepo, service.InMemoryType)

			_, err := svc.CreateTask(ctx, "alice", "Paint", task.WithCost(decimal.RequireFromString(raw)))
			requireCode(t, err, service.CodeValidation)
			mockRepo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
		}
	})

	t.Run("error - empty title", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.CreateTask(ctx, "alice", "   ")
		requireCode(t, err, service.CodeValidation)
		mockRepo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})
}

// TestTaskService_Apply тестирует отклик на задачу
func TestTaskService_Apply(t *testing.T) {
	ctx := context.Background()
	custom := decimal.NewFromInt(80)
	padded := decimal.RequireFromString("10.500")
	fractional := decimal.RequireFromString("10.555")
	huge := decimal.New(1, 10)
	belowMax := decimal.RequireFromString("9999999999.99")

	tests := []struct {
		name      string
		userID    string
		message   string
		bid       *decimal.Decimal
		status    task.Status
		createErr error
		wantCode  string
		wantBid   decimal.Decimal
	}{
		{name: "success - default bid is task cost", userID: "bob", message: "hi", status: task.StatusOpen, wantBid: decimal.NewFromInt(100)},
		{name: "success - custom bid", userID: "bob", message: "hi", bid: &custom, status: task.StatusOpen, wantBid: custom},
		{name: "success - trailing zeros fit two decimals", userID: "bob", message: "hi", bid: &padded, status: task.StatusOpen, wantBid: padded},
		{name: "success - largest storable bid", userID: "bob", message: "hi", bid: &belowMax, status: task.StatusOpen, wantBid: belowMax},
		{name: "error - bid with three decimals", userID: "bob", message: "hi", bid: &fractional, status: task.StatusOpen, wantCode: service.CodeValidation},
		{name: "error - bid too large", userID: "bob", message: "hi", bid: &huge, status: task.StatusOpen, wantCode: service.CodeValidation},
		{name: "error - blank message", userID: "bob", message: "  ", status: task.StatusOpen, wantCode: service.CodeValidation},
		{name: "error - owner applies to own task", userID: "alice", message: "hi", status: task.StatusOpen, wantCode: service.CodeForbidden},
		{name: "error - task not open", userID: "bob", message: "hi", status: task.StatusInProgress, wantCode: service.CodeInvalidTransition},
		{name: "error - duplicate", userID: "bob", message: "hi", status: task.StatusOpen, createErr: repo.ErrDuplicate, wantCode: service.CodeDuplicateApplication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tk := openTask("alice")
			tk.Status = tt.status

			mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil).Maybe()
			mockRepo.On("CreateApplication", mock.Anything, mock.Anything).Return(tt.createErr).Maybe()

			svc := service.NewTaskService(mockRepo, service.InMemoryType)
			app, err := svc.Apply(ctx, tt.userID, tk.UUID, tt.message, tt.bid)

			if tt.wantCode != "" {
				requireCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantBid.Equal(app.BidAmount))
			assert.Equal(t, task.ApplicationPending, app.Status)
			assert.Equal(t, task.DeliveryNone, app.DeliveryStatus)
			assert.Equal(t, "bob", app.ApplicantID)
		})
	}
}

func TestTaskService_Apply_TaskNotFound(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	id := uuid.New()
	mockRepo.On("GetTaskByID", mock.Anything, id).Return(nil, repo.ErrNotFound)

	svc := service.NewTaskService(mockRepo, service.InMemoryType)
	_, err := svc.Apply(context.Background(), "bob", id, "hi", nil)

	requireCode(t, err, service.CodeNotFound)
}

// TestTaskService_UpdateApplicationStatus тестирует принятие и отклонение
func TestTaskService_UpdateApplicationStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("success - accept moves task in progress", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		app := pendingApplication(tk, "bob")

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)
		mockRepo.On("SaveTransition", mock.Anything,
			mock.MatchedBy(func(t *task.Task) bool { return t.Status == task.StatusInProgress }),
			mock.MatchedBy(func(a *task.Application) bool { return a.Status == task.ApplicationAccepted }),
		).Return(nil)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		result, err := svc.UpdateApplicationStatus(ctx, "alice", app.UUID, task.ApplicationAccepted)

		require.NoError(t, err)
		assert.Equal(t, task.ApplicationAccepted, result.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("success - reject keeps task open", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		app := pendingApplication(tk, "bob")

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)
		mockRepo.On("UpdateApplication", mock.Anything, mock.MatchedBy(func(a *task.Application) bool {
			return a.Status == task.ApplicationRejected
		})).Return(nil)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		result, err := svc.UpdateApplicationStatus(ctx, "alice", app.UUID, task.ApplicationRejected)

		require.NoError(t, err)
		assert.Equal(t, task.ApplicationRejected, result.Status)
		assert.Equal(t, task.StatusOpen, tk.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("error - not the owner", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		app := pendingApplication(tk, "bob")

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		_, err := svc.UpdateApplicationStatus(ctx, "mallory", app.UUID, task.ApplicationAccepted)

		requireCode(t, err, service.CodeForbidden)
	})

	t.Run("error - already decided", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		app := pendingApplication(tk, "bob")
		app.Status = task.ApplicationRejected

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		_, err := svc.UpdateApplicationStatus(ctx, "alice", app.UUID, task.ApplicationAccepted)

		requireCode(t, err, service.CodeInvalidTransition)
	})

	t.Run("error - version conflict", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		app := pendingApplication(tk, "bob")

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)
		mockRepo.On("SaveTransition", mock.Anything, mock.Anything, mock.Anything).Return(repo.ErrVersionConflict)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		_, err := svc.UpdateApplicationStatus(ctx, "alice", app.UUID, task.ApplicationAccepted)

		requireCode(t, err, service.CodeVersionConflict)
	})

	t.Run("error - unsupported status", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.UpdateApplicationStatus(ctx, "alice", uuid.New(), task.ApplicationPending)
		requireCode(t, err, service.CodeValidation)
	})
}

// TestTaskService_DeliveryCycle тестирует сдачу и проверку работы
func TestTaskService_DeliveryCycle(t *testing.T) {
	ctx := context.Background()

	setup := func() (*MockTaskRepository, *task.Task, *task.Application) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		tk.Status = task.StatusInProgress
		app := pendingApplication(tk, "bob")
		app.Status = task.ApplicationAccepted

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)
		mockRepo.On("SaveTransition", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
		return mockRepo, tk, app
	}

	t.Run("success - submit then request changes then approve", func(t *testing.T) {
		mockRepo, tk, app := setup()
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.SubmitDelivery(ctx, "bob", app.UUID, "first draft")
		require.NoError(t, err)
		assert.Equal(t, task.StatusDeliveryReview, tk.Status)
		assert.Equal(t, task.DeliverySubmitted, app.DeliveryStatus)

		_, err = svc.ReviewDelivery(ctx, "alice", app.UUID, task.DeliveryChangesRequested, "add tests")
		require.NoError(t, err)
		assert.Equal(t, task.StatusInProgress, tk.Status)
		assert.Equal(t, "add tests", app.DeliveryFeedback)

		_, err = svc.SubmitDelivery(ctx, "bob", app.UUID, "second draft")
		require.NoError(t, err)
		assert.Equal(t, "second draft", app.DeliveryContent)
		assert.Empty(t, app.DeliveryFeedback)

		_, err = svc.ReviewDelivery(ctx, "alice", app.UUID, task.DeliveryApproved, "")
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, tk.Status)
		assert.Equal(t, task.DeliveryApproved, app.DeliveryStatus)
	})

	t.Run("error - someone else submits", func(t *testing.T) {
		mockRepo, _, app := setup()
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.SubmitDelivery(ctx, "mallory", app.UUID, "stolen")
		requireCode(t, err, service.CodeForbidden)
	})

	t.Run("error - changes requested without feedback", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.ReviewDelivery(ctx, "alice", uuid.New(), task.DeliveryChangesRequested, " ")
		requireCode(t, err, service.CodeValidation)
	})

	t.Run("error - review before submission", func(t *testing.T) {
		mockRepo, _, app := setup()
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.ReviewDelivery(ctx, "alice", app.UUID, task.DeliveryApproved, "")
		requireCode(t, err, service.CodeInvalidTransition)
	})
}

// TestTaskService_RateUser тестирует оценку исполнителя
func TestTaskService_RateUser(t *testing.T) {
	ctx := context.Background()

	approved := func() (*MockTaskRepository, *task.Application) {
		mockRepo := new(MockTaskRepository)
		tk := openTask("alice")
		tk.Status = task.StatusCompleted
		app := pendingApplication(tk, "bob")
		app.Status = task.ApplicationAccepted
		app.DeliveryStatus = task.DeliveryApproved

		mockRepo.On("GetApplicationByID", mock.Anything, app.UUID).Return(app, nil)
		mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)
		return mockRepo, app
	}

	t.Run("success", func(t *testing.T) {
		mockRepo, app := approved()
		mockRepo.On("UpdateApplication", mock.Anything, mock.MatchedBy(func(a *task.Application) bool {
			return a.Rating != nil && *a.Rating == 4
		})).Return(nil)

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		result, err := svc.RateUser(ctx, "alice", app.UUID, 4)

		require.NoError(t, err)
		require.NotNil(t, result.Rating)
		mockRepo.AssertExpectations(t)
	})

	t.Run("error - already rated", func(t *testing.T) {
		mockRepo, app := approved()
		r := 5
		app.Rating = &r

		svc := service.NewTaskService(mockRepo, service.InMemoryType)
		_, err := svc.RateUser(ctx, "alice", app.UUID, 3)

		requireCode(t, err, service.CodeAlreadyRated)
		mockRepo.AssertNotCalled(t, "UpdateApplication", mock.Anything, mock.Anything)
	})

	t.Run("error - out of range", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		svc := service.NewTaskService(mockRepo, service.InMemoryType)

		_, err := svc.RateUser(ctx, "alice", uuid.New(), 6)
		requireCode(t, err, service.CodeValidation)
	})
}

// TestTaskService_GetOwnedTasks проверяет что задачи владельца возвращаются с откликами
func TestTaskService_GetOwnedTasks(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	tk := openTask("alice")
	app := pendingApplication(tk, "bob")

	mockRepo.On("GetOwnedWithLimit", mock.Anything, 1, 100, "alice").Return([]*task.Task{tk}, nil)
	mockRepo.On("GetApplicationsByTask", mock.Anything, tk.UUID).Return([]*task.Application{app}, nil)

	svc := service.NewTaskService(mockRepo, service.InMemoryType)
	tasks, err := svc.GetOwnedTasks(context.Background(), "alice", 0, 500)

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Len(t, tasks[0].Applications, 1)
	assert.Equal(t, app.UUID, tasks[0].Applications[0].UUID)
	mockRepo.AssertExpectations(t)
}

func TestTaskService_GetTaskApplications_Forbidden(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	tk := openTask("alice")
	mockRepo.On("GetTaskByID", mock.Anything, tk.UUID).Return(tk, nil)

	svc := service.NewTaskService(mockRepo, service.InMemoryType)
	_, err := svc.GetTaskApplications(context.Background(), "bob", tk.UUID)

	requireCode(t, err, service.CodeForbidden)
	mockRepo.AssertNotCalled(t, "GetApplicationsByTask", mock.Anything, mock.Anything)
}
