package service

import (
	"communityTasks/internal/models/task"
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(context.Context) error

	CreateTask(context.Context, *task.Task) error
	UpdateTask(context.Context, *task.Task) error
	GetTaskByID(context.Context, uuid.UUID) (*task.Task, error)
	GetStatusedWithLimit(ctx context.Context, page, limit int, status task.Status) ([]*task.Task, error)
	GetOwnedWithLimit(ctx context.Context, page, limit int, owner string) ([]*task.Task, error)
	GetOpenTasksDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error)

	CreateApplication(context.Context, *task.Application) error
	UpdateApplication(context.Context, *task.Application) error
	GetApplicationByID(context.Context, uuid.UUID) (*task.Application, error)
	GetApplicationsByTask(context.Context, uuid.UUID) ([]*task.Application, error)
	GetApplicationsByApplicant(ctx context.Context, page, limit int, applicant string) ([]*task.Application, error)

	// SaveTransition атомарно сохраняет задачу и отклик с проверкой версий обоих
	SaveTransition(context.Context, *task.Task, *task.Application) error
	RatingSummary(ctx context.Context, userID string) (task.RatingSummary, error)
}

type RepoType string

const PostgresType RepoType = "postgres"
const SQLiteType RepoType = "sqlite"
const InMemoryType RepoType = "inmemory"
