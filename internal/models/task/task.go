package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Task struct {
	UUID         uuid.UUID       `json:"id" db:"uuid"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description" db:"description"`
	Cost         decimal.Decimal `json:"cost" db:"cost"`
	Duration     string          `json:"duration" db:"duration"`
	DueDate      *time.Time      `json:"due_date,omitempty" db:"due_date"`
	Priority     Priority        `json:"priority" db:"priority"`
	Status       Status          `json:"status" db:"status"`
	CreatedBy    string          `json:"created_by" db:"created_by"`
	ProjectID    string          `json:"project_id,omitempty" db:"project_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty" db:"updated_at,omitempty"`
	Version      int             `json:"version" db:"version"`
	Applications []Application   `json:"applications,omitempty" db:"-"`
}

type Status string
type Priority string

const StatusOpen Status = "open"
const StatusInProgress Status = "in_progress"
const StatusDeliveryReview Status = "delivery_review"
const StatusCompleted Status = "completed"
const StatusExpired Status = "expired"

const PriorityUrgent Priority = "urgent"
const PriorityHigh Priority = "high"
const PriorityNormal Priority = "normal"
const PriorityLow Priority = "low"

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// IsOwnedBy сообщает, создана ли задача данным пользователем
func (t *Task) IsOwnedBy(userID string) bool {
	return userID != "" && t.CreatedBy == userID
}

// Clone возвращает копию задачи вместе с откликами
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		c.UpdatedAt = &u
	}
	if t.Applications != nil {
		c.Applications = make([]Application, len(t.Applications))
		for i := range t.Applications {
			c.Applications[i] = *t.Applications[i].Clone()
		}
	}
	return &c
}
