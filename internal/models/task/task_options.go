package task

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	if description == "" {
		return nil
	}
	return func(task *Task) {
		task.Description = description
	}
}

func WithCost(cost decimal.Decimal) TaskOption {
	if cost.IsNegative() {
		return nil
	}
	return func(task *Task) {
		task.Cost = cost
	}
}

func WithDuration(duration string) TaskOption {
	if duration == "" {
		return nil
	}
	return func(task *Task) {
		task.Duration = duration
	}
}

func WithPriority(priority Priority) TaskOption {
	if !priority.Valid() {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

func WithProject(projectID string) TaskOption {
	if projectID == "" {
		return nil
	}
	return func(task *Task) {
		task.ProjectID = projectID
	}
}

func WithDueDate(dueDate time.Time) TaskOption {
	if dueDate.IsZero() {
		return nil
	}
	if time.Now().After(dueDate) {
		return nil
	}
	return func(task *Task) {
		task.DueDate = &dueDate
	}
}
