package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransition: действие недопустимо в текущем состоянии задачи или отклика
var ErrInvalidTransition = errors.New("недопустимый переход состояния")

func transitionError(action string, from any) error {
	return fmt.Errorf("%s из состояния %v: %w", action, from, ErrInvalidTransition)
}

// CanApply: откликнуться можно только на открытую чужую задачу
func (t *Task) CanApply(userID string) bool {
	return t.Status == StatusOpen && !t.IsOwnedBy(userID)
}

func (a *Application) IsPending() bool {
	return a.Status == ApplicationPending
}

// CanSubmitDelivery: сдавать работу можно после принятия и до одобрения
func (a *Application) CanSubmitDelivery() bool {
	return a.Status == ApplicationAccepted && a.DeliveryStatus != DeliveryApproved
}

func (a *Application) AwaitingReview() bool {
	return a.Status == ApplicationAccepted && a.DeliveryStatus == DeliverySubmitted
}

func (a *Application) CanBeRated() bool {
	return a.DeliveryStatus == DeliveryApproved && a.Rating == nil
}

// Accept принимает отклик; задача переходит в работу
func Accept(t *Task, a *Application) error {
	if !a.IsPending() {
		return transitionError("принятие отклика", a.Status)
	}
	if t.Status != StatusOpen {
		return transitionError("принятие отклика", t.Status)
	}
	a.Status = ApplicationAccepted
	a.DeliveryStatus = DeliveryNone
	t.Status = StatusInProgress
	return nil
}

func Reject(a *Application) error {
	if !a.IsPending() {
		return transitionError("отклонение отклика", a.Status)
	}
	a.Status = ApplicationRejected
	return nil
}

// SubmitDelivery перезаписывает предыдущую сдачу и сбрасывает замечания
func SubmitDelivery(t *Task, a *Application, content string) error {
	if !a.CanSubmitDelivery() {
		return transitionError("сдача работы", a.DeliveryStatus)
	}
	a.DeliveryContent = content
	a.DeliveryFeedback = ""
	a.DeliveryStatus = DeliverySubmitted
	t.Status = StatusDeliveryReview
	return nil
}

// Review применяет решение владельца по сданной работе
func Review(t *Task, a *Application, decision DeliveryStatus, feedback string) error {
	if !a.AwaitingReview() {
		return transitionError("проверка работы", a.DeliveryStatus)
	}
	switch decision {
	case DeliveryApproved:
		t.Status = StatusCompleted
	case DeliveryChangesRequested:
		if strings.TrimSpace(feedback) == "" {
			return fmt.Errorf("запрос доработки без комментария: %w", ErrInvalidTransition)
		}
		t.Status = StatusInProgress
	default:
		return transitionError("проверка работы", decision)
	}
	a.DeliveryStatus = decision
	a.DeliveryFeedback = feedback
	return nil
}

func Rate(a *Application, rating int) error {
	if !a.CanBeRated() {
		return transitionError("оценка исполнителя", a.DeliveryStatus)
	}
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("оценка %d вне диапазона %d-%d: %w", rating, MinRating, MaxRating, ErrInvalidTransition)
	}
	a.Rating = &rating
	return nil
}

// Expire закрывает открытую задачу с истёкшим сроком
func Expire(t *Task, now time.Time) error {
	if t.Status != StatusOpen {
		return transitionError("истечение срока", t.Status)
	}
	if t.DueDate == nil || !t.DueDate.Before(now) {
		return fmt.Errorf("срок задачи ещё не истёк: %w", ErrInvalidTransition)
	}
	t.Status = StatusExpired
	return nil
}
