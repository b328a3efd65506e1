package board

import (
	"communityTasks/internal/models/task"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerDeliveryManager - принятые отклики текущего пользователя и сдача работы по ним
type WorkerDeliveryManager struct {
	s *Session

	appID      uuid.UUID
	content    string
	submitting bool
	seq        uint64
}

type Assignment struct {
	Application *task.Application
	CanSubmit   bool
}

// Applications возвращает все отклики пользователя
func (w *WorkerDeliveryManager) Applications() []*task.Application {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	res := make([]*task.Application, len(w.s.myApps))
	for i, a := range w.s.myApps {
		res[i] = a.Clone()
	}
	return res
}

// Assignments - только принятые отклики, по которым ведётся работа
func (w *WorkerDeliveryManager) Assignments() []Assignment {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	var res []Assignment
	for _, a := range w.s.myApps {
		if a.Status != task.ApplicationAccepted {
			continue
		}
		res = append(res, Assignment{Application: a.Clone(), CanSubmit: a.CanSubmitDelivery()})
	}
	return res
}

// OpenDelivery открывает окно сдачи; поле заполняется предыдущей сдачей
func (w *WorkerDeliveryManager) OpenDelivery(appID uuid.UUID) error {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	app := s.findMyApplicationLocked(appID)
	if app == nil {
		return fmt.Errorf("отклик %s: %w", appID, ErrNotFound)
	}
	if !app.CanSubmitDelivery() {
		return fmt.Errorf("сдача по отклику в статусе %s/%s: %w", app.Status, app.DeliveryStatus, ErrActionDisabled)
	}
	w.seq = s.Modal.openLocked(Modal{Kind: ModalDelivery, TaskID: app.TaskID, ApplicationID: appID})
	w.appID = appID
	w.content = app.DeliveryContent
	w.submitting = false
	return nil
}

func (w *WorkerDeliveryManager) SetContent(content string) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	w.content = content
}

func (w *WorkerDeliveryManager) Content() string {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.content
}

func (w *WorkerDeliveryManager) CanSubmit() bool {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.canSubmitLocked()
}

func (w *WorkerDeliveryManager) Submit(ctx context.Context) error {
	s := w.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.Modal.stillOpenLocked(ModalDelivery, w.seq) {
		s.mu.Unlock()
		return ErrNoModal
	}
	if !w.canSubmitLocked() {
		s.mu.Unlock()
		return ErrActionDisabled
	}
	w.submitting = true
	appID, content, seq := w.appID, strings.TrimSpace(w.content), w.seq
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	_, err := s.api.SubmitDelivery(callCtx, appID, content)
	cancel()

	s.mu.Lock()
	w.submitting = false
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err == nil && s.Modal.stillOpenLocked(ModalDelivery, seq) {
		s.Modal.closeLocked()
		w.content = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Board: Работа не сдана", zap.String("application_id", appID.String()), zap.Error(err))
		s.notify(failure(TitleDeliveryFailed, err))
		return err
	}

	s.notify(success(TitleDeliverySubmitted, ""))
	s.reload(ctx)
	return nil
}

func (w *WorkerDeliveryManager) canSubmitLocked() bool {
	return !w.s.closed && !w.submitting && strings.TrimSpace(w.content) != "" &&
		w.s.Modal.stillOpenLocked(ModalDelivery, w.seq)
}
