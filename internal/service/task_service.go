package service

import (
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	repo "communityTasks/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

const MaxLimit = 100

const (
	resourceTask        = "Задача"
	resourceApplication = "Отклик"
)

type TaskService struct {
	repo     TaskRepository
	repoType RepoType
}

func NewTaskService(repo TaskRepository, repoType RepoType) TaskService {
	return TaskService{
		repo:     repo,
		repoType: repoType,
	}
}

func (s *TaskService) StorageType() RepoType {
	return s.repoType
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = repo.DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (s *TaskService) CreateTask(ctx context.Context, owner, title string, options ...task.TaskOption) (*task.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, NewValidationError("title", "название не может быть пустым")
	}
	if owner == "" {
		return nil, NewForbidden("create_task")
	}

	newTask := &task.Task{
		UUID:      uuid.New(),
		Title:     title,
		Cost:      decimal.Zero,
		Priority:  task.PriorityNormal,
		Status:    task.StatusOpen,
		CreatedBy: owner,
		CreatedAt: time.Now(),
		Version:   1,
	}
	for _, opt := range options {
		if opt != nil {
			opt(newTask)
		}
	}
	if err := task.ValidateAmount(newTask.Cost); err != nil {
		return nil, NewValidationError("cost", err.Error())
	}

	if err := s.repo.CreateTask(ctx, newTask); err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", newTask.UUID.String()),
		zap.String("owner", owner))
	return newTask, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.loadTask(ctx, id)
}

// GetCommunityTasks возвращает все открытые задачи, включая собственные задачи пользователя
func (s *TaskService) GetCommunityTasks(ctx context.Context, page, limit int) ([]*task.Task, error) {
	page, limit = normalizePage(page, limit)
	tasks, err := s.repo.GetStatusedWithLimit(ctx, page, limit, task.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("получение задач сообщества: %w", err)
	}
	return tasks, nil
}

// GetOwnedTasks возвращает задачи владельца вместе с откликами на них
func (s *TaskService) GetOwnedTasks(ctx context.Context, owner string, page, limit int) ([]*task.Task, error) {
	page, limit = normalizePage(page, limit)
	tasks, err := s.repo.GetOwnedWithLimit(ctx, page, limit, owner)
	if err != nil {
		return nil, fmt.Errorf("получение задач владельца: %w", err)
	}

	for _, t := range tasks {
		apps, err := s.repo.GetApplicationsByTask(ctx, t.UUID)
		if err != nil {
			return nil, fmt.Errorf("получение откликов задачи %s: %w", t.UUID, err)
		}
		t.Applications = make([]task.Application, len(apps))
		for i, a := range apps {
			t.Applications[i] = *a
		}
	}
	return tasks, nil
}

func (s *TaskService) GetMyApplications(ctx context.Context, applicant string, page, limit int) ([]*task.Application, error) {
	page, limit = normalizePage(page, limit)
	apps, err := s.repo.GetApplicationsByApplicant(ctx, page, limit, applicant)
	if err != nil {
		return nil, fmt.Errorf("получение откликов пользователя: %w", err)
	}
	return apps, nil
}

// Apply создаёт отклик; ставка по умолчанию равна стоимости задачи
func (s *TaskService) Apply(ctx context.Context, userID string, taskID uuid.UUID, message string, bid *decimal.Decimal) (*task.Application, error) {
	if strings.TrimSpace(message) == "" {
		return nil, NewValidationError("message", "сопроводительное письмо не может быть пустым")
	}
	if bid != nil {
		if err := task.ValidateAmount(*bid); err != nil {
			return nil, NewValidationError("bid_amount", err.Error())
		}
	}

	t, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.IsOwnedBy(userID) {
		return nil, NewForbidden("apply_own_task")
	}
	if !t.CanApply(userID) {
		return nil, NewInvalidTransition(
			fmt.Errorf("задача в статусе %s: %w", t.Status, task.ErrInvalidTransition),
			ToDetail("task_status", t.Status))
	}

	amount := t.Cost
	if bid != nil {
		amount = *bid
	}

	app := &task.Application{
		UUID:           uuid.New(),
		TaskID:         t.UUID,
		ApplicantID:    userID,
		Message:        message,
		BidAmount:      amount,
		Status:         task.ApplicationPending,
		DeliveryStatus: task.DeliveryNone,
		CreatedAt:      time.Now(),
		Version:        1,
	}

	if err := s.repo.CreateApplication(ctx, app); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			logger.Info("Service: Повторный отклик",
				zap.String("task_id", taskID.String()),
				zap.String("applicant", userID))
			return nil, NewBusinessError(CodeDuplicateApplication, "Вы уже откликались на эту задачу",
				ToDetail("task_id", taskID.String()))
		}
		return nil, fmt.Errorf("создание отклика: %w", err)
	}

	logger.Info("Service: Отклик создан",
		zap.String("application_id", app.UUID.String()),
		zap.String("task_id", taskID.String()))
	return app, nil
}

// GetTaskApplications доступен только владельцу задачи
func (s *TaskService) GetTaskApplications(ctx context.Context, userID string, taskID uuid.UUID) ([]*task.Application, error) {
	t, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.IsOwnedBy(userID) {
		return nil, NewForbidden("list_applications")
	}

	apps, err := s.repo.GetApplicationsByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("получение откликов: %w", err)
	}
	return apps, nil
}

// UpdateApplicationStatus принимает или отклоняет отклик
func (s *TaskService) UpdateApplicationStatus(ctx context.Context, userID string, appID uuid.UUID, status task.ApplicationStatus) (*task.Application, error) {
	if status != task.ApplicationAccepted && status != task.ApplicationRejected {
		return nil, NewValidationError("status", "допустимы только accepted или rejected")
	}

	t, app, err := s.loadOwned(ctx, userID, appID, "update_application_status")
	if err != nil {
		return nil, err
	}

	if status == task.ApplicationRejected {
		if err := task.Reject(app); err != nil {
			return nil, NewInvalidTransition(err, ToDetail("application_status", app.Status))
		}
		if err := s.repo.UpdateApplication(ctx, app); err != nil {
			return nil, s.writeError(err, resourceApplication, appID)
		}
		logger.Info("Service: Отклик отклонён", zap.String("application_id", appID.String()))
		return app, nil
	}

	if err := task.Accept(t, app); err != nil {
		return nil, NewInvalidTransition(err,
			ToDetail("application_status", app.Status),
			ToDetail("task_status", t.Status))
	}
	if err := s.repo.SaveTransition(ctx, t, app); err != nil {
		return nil, s.writeError(err, resourceApplication, appID)
	}

	logger.Info("Service: Отклик принят",
		zap.String("application_id", appID.String()),
		zap.String("task_id", t.UUID.String()))
	return app, nil
}

// SubmitDelivery доступна только исполнителю принятого отклика
func (s *TaskService) SubmitDelivery(ctx context.Context, userID string, appID uuid.UUID, content string) (*task.Application, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content", "результат работы не может быть пустым")
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != userID {
		return nil, NewForbidden("submit_delivery")
	}
	t, err := s.loadTask(ctx, app.TaskID)
	if err != nil {
		return nil, err
	}

	if err := task.SubmitDelivery(t, app, content); err != nil {
		return nil, NewInvalidTransition(err,
			ToDetail("application_status", app.Status),
			ToDetail("delivery_status", app.DeliveryStatus))
	}
	if err := s.repo.SaveTransition(ctx, t, app); err != nil {
		return nil, s.writeError(err, resourceApplication, appID)
	}

	logger.Info("Service: Работа сдана", zap.String("application_id", appID.String()))
	return app, nil
}

func (s *TaskService) ReviewDelivery(ctx context.Context, userID string, appID uuid.UUID, decision task.DeliveryStatus, feedback string) (*task.Application, error) {
	if !decision.IsReviewDecision() {
		return nil, NewValidationError("decision", "допустимы только approved или changes_requested")
	}
	if decision == task.DeliveryChangesRequested && strings.TrimSpace(feedback) == "" {
		return nil, NewValidationError("feedback", "при запросе доработки нужен комментарий")
	}

	t, app, err := s.loadOwned(ctx, userID, appID, "review_delivery")
	if err != nil {
		return nil, err
	}

	if err := task.Review(t, app, decision, feedback); err != nil {
		return nil, NewInvalidTransition(err, ToDetail("delivery_status", app.DeliveryStatus))
	}
	if err := s.repo.SaveTransition(ctx, t, app); err != nil {
		return nil, s.writeError(err, resourceApplication, appID)
	}

	logger.Info("Service: Работа проверена",
		zap.String("application_id", appID.String()),
		zap.String("decision", string(decision)))
	return app, nil
}

// RateUser оценивает исполнителя одобренной работы; повторная оценка запрещена
func (s *TaskService) RateUser(ctx context.Context, userID string, appID uuid.UUID, rating int) (*task.Application, error) {
	if rating < task.MinRating || rating > task.MaxRating {
		return nil, NewValidationError("rating", fmt.Sprintf("оценка должна быть от %d до %d", task.MinRating, task.MaxRating))
	}

	_, app, err := s.loadOwned(ctx, userID, appID, "rate_user")
	if err != nil {
		return nil, err
	}
	if app.Rating != nil {
		return nil, NewBusinessError(CodeAlreadyRated, "Исполнитель уже оценён",
			ToDetail("application_id", appID.String()))
	}

	if err := task.Rate(app, rating); err != nil {
		return nil, NewInvalidTransition(err, ToDetail("delivery_status", app.DeliveryStatus))
	}
	if err := s.repo.UpdateApplication(ctx, app); err != nil {
		return nil, s.writeError(err, resourceApplication, appID)
	}

	logger.Info("Service: Исполнитель оценён",
		zap.String("application_id", appID.String()),
		zap.String("worker", app.ApplicantID),
		zap.Int("rating", rating))
	return app, nil
}

func (s *TaskService) GetUserRating(ctx context.Context, userID string) (task.RatingSummary, error) {
	summary, err := s.repo.RatingSummary(ctx, userID)
	if err != nil {
		return task.RatingSummary{}, fmt.Errorf("получение рейтинга: %w", err)
	}
	return summary, nil
}

func (s *TaskService) loadTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound(resourceTask, id.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return t, nil
}

func (s *TaskService) loadApplication(ctx context.Context, id uuid.UUID) (*task.Application, error) {
	app, err := s.repo.GetApplicationByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Отклик не найден", zap.String("target_id", id.String()))
			return nil, NewNotFound(resourceApplication, id.String())
		}
		return nil, fmt.Errorf("получение отклика: %w", err)
	}
	return app, nil
}

// loadOwned загружает отклик и его задачу, проверяя что userID владелец задачи
func (s *TaskService) loadOwned(ctx context.Context, userID string, appID uuid.UUID, action string) (*task.Task, *task.Application, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.loadTask(ctx, app.TaskID)
	if err != nil {
		return nil, nil, err
	}
	if !t.IsOwnedBy(userID) {
		return nil, nil, NewForbidden(action)
	}
	return t, app, nil
}

func (s *TaskService) writeError(err error, resource string, id uuid.UUID) error {
	switch {
	case errors.Is(err, repo.ErrVersionConflict):
		return NewVersionConflict(resource, id.String())
	case errors.Is(err, repo.ErrNotFound):
		return NewNotFound(resource, id.String())
	default:
		return fmt.Errorf("сохранение: %w", err)
	}
}
