package board

import (
	"communityTasks/internal/models/task"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplicationReviewPanel - действия владельца над одним откликом: принять, отклонить,
// запросить доработку или одобрить сданную работу с оценкой исполнителя.
type ApplicationReviewPanel struct {
	s     *Session
	appID uuid.UUID
	seq   uint64

	feedback   string
	rating     int
	submitting bool
}

func (p *ApplicationReviewPanel) ApplicationID() uuid.UUID {
	return p.appID
}

func (p *ApplicationReviewPanel) Application() (*task.Application, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	app := p.s.Owner.findLocked(p.appID)
	if app == nil {
		return nil, fmt.Errorf("отклик %s: %w", p.appID, ErrNotFound)
	}
	return app.Clone(), nil
}

func (p *ApplicationReviewPanel) SetFeedback(feedback string) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.feedback = feedback
}

func (p *ApplicationReviewPanel) Feedback() string {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.feedback
}

func (p *ApplicationReviewPanel) SetRating(rating int) error {
	if rating < task.MinRating || rating > task.MaxRating {
		return fmt.Errorf("оценка %d вне диапазона %d-%d: %w", rating, task.MinRating, task.MaxRating, ErrActionDisabled)
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.rating = rating
	return nil
}

func (p *ApplicationReviewPanel) Rating() int {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.rating
}

func (p *ApplicationReviewPanel) Submitting() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.submitting
}

func (p *ApplicationReviewPanel) CanAccept() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.canDecideLocked()
}

func (p *ApplicationReviewPanel) CanReject() bool {
	return p.CanAccept()
}

// CanRequestChanges: доработку нельзя запросить без комментария
func (p *ApplicationReviewPanel) CanRequestChanges() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.canReviewLocked() && strings.TrimSpace(p.feedback) != ""
}

func (p *ApplicationReviewPanel) CanApprove() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.canReviewLocked()
}

// CanRate: оценка после одобрения, если она ещё не сохранена
func (p *ApplicationReviewPanel) CanRate() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	app := p.s.Owner.findLocked(p.appID)
	return p.usableLocked() && app != nil && app.CanBeRated()
}

func (p *ApplicationReviewPanel) Accept(ctx context.Context) error {
	return p.s.Owner.setStatus(ctx, p.appID, task.ApplicationAccepted)
}

func (p *ApplicationReviewPanel) Reject(ctx context.Context) error {
	return p.s.Owner.setStatus(ctx, p.appID, task.ApplicationRejected)
}

func (p *ApplicationReviewPanel) RequestChanges(ctx context.Context) error {
	s := p.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !p.canReviewLocked() || strings.TrimSpace(p.feedback) == "" {
		s.mu.Unlock()
		return ErrActionDisabled
	}
	p.submitting = true
	feedback := strings.TrimSpace(p.feedback)
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	_, err := s.api.ReviewDelivery(callCtx, p.appID, task.DeliveryChangesRequested, feedback)
	cancel()

	if closed := p.finish(err == nil); closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.log.Warn("Board: Запрос доработки не отправлен", zap.String("application_id", p.appID.String()), zap.Error(err))
		s.notify(failure(TitleReviewFailed, err))
		return err
	}

	s.notify(success(TitleChangesRequested, feedback))
	s.reload(ctx)
	return nil
}

// Approve отправляет ровно одно решение approved и ровно одну оценку.
// Если решение не принято сервером, оценка не отправляется.
func (p *ApplicationReviewPanel) Approve(ctx context.Context) error {
	s := p.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !p.canReviewLocked() {
		s.mu.Unlock()
		return ErrActionDisabled
	}
	p.submitting = true
	feedback := strings.TrimSpace(p.feedback)
	rating := p.rating
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	defer cancel()

	if _, err := s.api.ReviewDelivery(callCtx, p.appID, task.DeliveryApproved, feedback); err != nil {
		if closed := p.finish(false); closed {
			return ErrSessionClosed
		}
		s.log.Warn("Board: Работа не одобрена", zap.String("application_id", p.appID.String()), zap.Error(err))
		s.notify(failure(TitleReviewFailed, err))
		return err
	}

	_, rateErr := s.api.RateUser(callCtx, p.appID, rating)
	if closed := p.finish(true); closed {
		return ErrSessionClosed
	}
	if rateErr != nil {
		s.log.Warn("Board: Оценка не сохранена", zap.String("application_id", p.appID.String()), zap.Error(rateErr))
		s.notify(failure(TitleRatingFailed, rateErr))
	} else {
		s.notify(success(TitleDeliveryApproved, fmt.Sprintf("Rated %d/%d", rating, task.MaxRating)))
	}
	s.reload(ctx)
	return rateErr
}

// Rate повторяет оценку, если после одобрения она не сохранилась
func (p *ApplicationReviewPanel) Rate(ctx context.Context) error {
	s := p.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	app := s.Owner.findLocked(p.appID)
	if !p.usableLocked() || app == nil || !app.CanBeRated() {
		s.mu.Unlock()
		return ErrActionDisabled
	}
	p.submitting = true
	rating := p.rating
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	_, err := s.api.RateUser(callCtx, p.appID, rating)
	cancel()

	if closed := p.finish(err == nil); closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.notify(failure(TitleRatingFailed, err))
		return err
	}
	s.notify(success(TitleDeliveryApproved, fmt.Sprintf("Rated %d/%d", rating, task.MaxRating)))
	s.reload(ctx)
	return nil
}

// finish снимает флаг отправки и при успехе закрывает окно панели.
// Возвращает true, если сессия уже закрыта.
func (p *ApplicationReviewPanel) finish(done bool) bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.submitting = false
	if p.s.closed {
		return true
	}
	if done && p.s.Modal.stillOpenLocked(ModalReview, p.seq) {
		p.s.Modal.closeLocked()
	}
	return false
}

func (p *ApplicationReviewPanel) usableLocked() bool {
	return !p.s.closed && !p.submitting
}

func (p *ApplicationReviewPanel) canDecideLocked() bool {
	app := p.s.Owner.findLocked(p.appID)
	if app == nil || !p.usableLocked() {
		return false
	}
	_, busy := p.s.Owner.inFlight[p.appID]
	return app.IsPending() && !busy
}

func (p *ApplicationReviewPanel) canReviewLocked() bool {
	app := p.s.Owner.findLocked(p.appID)
	return app != nil && p.usableLocked() && app.AwaitingReview()
}
