package handlers

import (
	"communityTasks/internal/models/task"
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service interface {
	HealthCheck(context.Context) error

	CreateTask(ctx context.Context, owner, title string, options ...task.TaskOption) (*task.Task, error)
	GetTaskByID(context.Context, uuid.UUID) (*task.Task, error)
	GetCommunityTasks(ctx context.Context, page, limit int) ([]*task.Task, error)
	GetOwnedTasks(ctx context.Context, owner string, page, limit int) ([]*task.Task, error)
	GetMyApplications(ctx context.Context, applicant string, page, limit int) ([]*task.Application, error)

	Apply(ctx context.Context, userID string, taskID uuid.UUID, message string, bid *decimal.Decimal) (*task.Application, error)
	GetTaskApplications(ctx context.Context, userID string, taskID uuid.UUID) ([]*task.Application, error)
	UpdateApplicationStatus(ctx context.Context, userID string, appID uuid.UUID, status task.ApplicationStatus) (*task.Application, error)
	SubmitDelivery(ctx context.Context, userID string, appID uuid.UUID, content string) (*task.Application, error)
	ReviewDelivery(ctx context.Context, userID string, appID uuid.UUID, decision task.DeliveryStatus, feedback string) (*task.Application, error)
	RateUser(ctx context.Context, userID string, appID uuid.UUID, rating int) (*task.Application, error)
	GetUserRating(ctx context.Context, userID string) (task.RatingSummary, error)
}
