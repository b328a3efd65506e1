package dto

import (
	"communityTasks/internal/models/task"
	"time"

	"github.com/shopspring/decimal"
)

type CreateTaskRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Duration    string           `json:"duration"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	Priority    task.Priority    `json:"priority,omitempty"`
	ProjectID   string           `json:"project_id,omitempty"`
}

type ApplyRequest struct {
	Message   string           `json:"message"`
	BidAmount *decimal.Decimal `json:"bid_amount,omitempty"`
}

type UpdateApplicationStatusRequest struct {
	Status task.ApplicationStatus `json:"status"`
}

type DeliveryRequest struct {
	Content string `json:"content"`
}

type ReviewRequest struct {
	Decision task.DeliveryStatus `json:"decision"`
	Feedback string              `json:"feedback"`
}

type RatingRequest struct {
	Rating int `json:"rating"`
}

// Ответы сервиса: каждый объект завёрнут в поле с именем ресурса

type TaskEnvelope struct {
	Task *task.Task `json:"task"`
}

type TasksEnvelope struct {
	Tasks []*task.Task `json:"tasks"`
}

type ApplicationEnvelope struct {
	Application *task.Application `json:"application"`
}

type ApplicationsEnvelope struct {
	Applications []*task.Application `json:"applications"`
}

type RatingEnvelope struct {
	Rating task.RatingSummary `json:"rating"`
}

type UserInfo struct {
	UserID string `json:"user_id"`
}

type UserEnvelope struct {
	User UserInfo `json:"user"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
