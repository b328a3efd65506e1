package board

import (
	"communityTasks/internal/models/task"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TaskBrowser - обзор задач сообщества и форма отклика
type TaskBrowser struct {
	s *Session

	form ApplyForm
	seq  uint64
}

type TaskCard struct {
	Task     *task.Task
	Own      bool
	CanApply bool
	Label    string
}

// ApplyForm - снимок формы отклика. Bid хранится строкой в том виде, как его ввёл пользователь.
type ApplyForm struct {
	TaskID     uuid.UUID
	Message    string
	Bid        string
	Submitting bool
}

// Cards возвращает карточки задач; у собственных задач кнопка отклика недоступна
func (b *TaskBrowser) Cards() []TaskCard {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cards := make([]TaskCard, 0, len(s.community))
	for _, t := range s.community {
		own := t.IsOwnedBy(s.viewer)
		card := TaskCard{
			Task:     t.Clone(),
			Own:      own,
			CanApply: t.CanApply(s.viewer),
			Label:    LabelApply,
		}
		if own {
			card.Label = LabelYourTask
		}
		cards = append(cards, card)
	}
	return cards
}

// OpenApply открывает форму отклика; ставка по умолчанию равна стоимости задачи
func (b *TaskBrowser) OpenApply(taskID uuid.UUID) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	t := s.findCommunityLocked(taskID)
	if t == nil {
		return fmt.Errorf("задача %s: %w", taskID, ErrNotFound)
	}
	if t.IsOwnedBy(s.viewer) {
		return ErrOwnTask
	}
	if !t.CanApply(s.viewer) {
		return fmt.Errorf("задача в статусе %s: %w", t.Status, ErrActionDisabled)
	}

	b.seq = s.Modal.openLocked(Modal{Kind: ModalApply, TaskID: taskID})
	b.form = ApplyForm{TaskID: taskID, Bid: t.Cost.String()}
	return nil
}

func (b *TaskBrowser) Form() ApplyForm {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.form
}

func (b *TaskBrowser) SetMessage(message string) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.form.Message = message
}

func (b *TaskBrowser) SetBid(bid string) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.form.Bid = bid
}

// CanSubmit: нужен непустой текст отклика и корректная неотрицательная ставка (или пустая)
func (b *TaskBrowser) CanSubmit() bool {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.canSubmitLocked()
}

// Submit отправляет отклик. Повторный отклик на ту же задачу не считается ошибкой
// интерфейса: показывается информационное уведомление и форма закрывается.
func (b *TaskBrowser) Submit(ctx context.Context) error {
	s := b.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.Modal.stillOpenLocked(ModalApply, b.seq) {
		s.mu.Unlock()
		return ErrNoModal
	}
	if !b.canSubmitLocked() {
		s.mu.Unlock()
		return ErrActionDisabled
	}
	bid, _ := parseBid(b.form.Bid)
	taskID, message, seq := b.form.TaskID, strings.TrimSpace(b.form.Message), b.seq
	b.form.Submitting = true
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	_, err := s.api.Apply(callCtx, taskID, message, bid)
	cancel()

	duplicate := errors.Is(err, task.ErrDuplicateApplication)

	s.mu.Lock()
	b.form.Submitting = false
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if (err == nil || duplicate) && s.Modal.stillOpenLocked(ModalApply, seq) {
		s.Modal.closeLocked()
		b.form = ApplyForm{}
	}
	s.mu.Unlock()

	switch {
	case duplicate:
		s.log.Info("Board: Повторный отклик", zap.String("task_id", taskID.String()))
		s.notify(info(TitleAlreadyApplied, "You have already applied to this task"))
		return err
	case err != nil:
		s.log.Warn("Board: Отклик не отправлен", zap.String("task_id", taskID.String()), zap.Error(err))
		s.notify(failure(TitleApplyFailed, err))
		return err
	}

	s.notify(success(TitleApplied, ""))
	s.reload(ctx)
	return nil
}

func (b *TaskBrowser) canSubmitLocked() bool {
	if b.s.closed || b.form.Submitting || !b.s.Modal.stillOpenLocked(ModalApply, b.seq) {
		return false
	}
	if strings.TrimSpace(b.form.Message) == "" {
		return false
	}
	_, err := parseBid(b.form.Bid)
	return err == nil
}

// parseBid: пустая строка означает ставку по умолчанию (nil)
func parseBid(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	bid, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("ставка %q: %w", raw, err)
	}
	if err := task.ValidateAmount(bid); err != nil {
		return nil, fmt.Errorf("ставка %q: %w", raw, err)
	}
	return &bid, nil
}
