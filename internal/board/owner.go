package board

import (
	"communityTasks/internal/models/task"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OwnerTaskManager - задачи текущего пользователя и отклики на них.
// Список откликов задачи загружается лениво при открытии окна откликов.
type OwnerTaskManager struct {
	s *Session

	appsTaskID  uuid.UUID
	appsSeq     uint64
	apps        []*task.Application
	appsLoading bool
	inFlight    map[uuid.UUID]*pendingStatus
}

type OwnerTaskView struct {
	Task           *task.Task
	Pending        int
	AwaitingReview int
}

func (o *OwnerTaskManager) Tasks() []OwnerTaskView {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	views := make([]OwnerTaskView, 0, len(o.s.myTasks))
	for _, t := range o.s.myTasks {
		view := OwnerTaskView{Task: t.Clone()}
		for i := range t.Applications {
			a := &t.Applications[i]
			if a.IsPending() {
				view.Pending++
			}
			if a.AwaitingReview() {
				view.AwaitingReview++
			}
		}
		views = append(views, view)
	}
	return views
}

// OpenApplications открывает окно откликов и загружает их. Ответ, пришедший после
// закрытия окна или переключения на другую задачу, отбрасывается.
func (o *OwnerTaskManager) OpenApplications(ctx context.Context, taskID uuid.UUID) error {
	s := o.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.findMyTaskLocked(taskID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("задача %s: %w", taskID, ErrNotFound)
	}
	seq := s.Modal.openLocked(Modal{Kind: ModalApplications, TaskID: taskID})
	o.appsTaskID = taskID
	o.appsSeq = seq
	o.apps = nil
	o.appsLoading = true
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	apps, err := s.api.ListApplications(callCtx, taskID)
	cancel()

	s.mu.Lock()
	if s.closed || !s.Modal.stillOpenLocked(ModalApplications, seq) {
		// более новое открытие окна откликов ведёт свою загрузку
		if o.appsSeq == seq {
			o.appsLoading = false
		}
		s.mu.Unlock()
		s.log.Debug("Board: Отклики отброшены, окно уже закрыто", zap.String("task_id", taskID.String()))
		return nil
	}
	o.appsLoading = false
	if err == nil {
		o.apps = apps
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Board: Ошибка загрузки откликов", zap.String("task_id", taskID.String()), zap.Error(err))
		s.notify(failure(TitleApplicationsFailed, err))
		return err
	}
	return nil
}

// Applications возвращает отклики задачи из открытого окна и флаг их загрузки
func (o *OwnerTaskManager) Applications() ([]*task.Application, bool) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	res := make([]*task.Application, len(o.apps))
	for i, a := range o.apps {
		res[i] = a.Clone()
	}
	return res, o.appsLoading
}

func (o *OwnerTaskManager) ApplicationsTask() uuid.UUID {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return o.appsTaskID
}

func (o *OwnerTaskManager) InFlight(appID uuid.UUID) bool {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	_, busy := o.inFlight[appID]
	return busy
}

func (o *OwnerTaskManager) Accept(ctx context.Context, appID uuid.UUID) error {
	return o.setStatus(ctx, appID, task.ApplicationAccepted)
}

func (o *OwnerTaskManager) Reject(ctx context.Context, appID uuid.UUID) error {
	return o.setStatus(ctx, appID, task.ApplicationRejected)
}

// OpenReview открывает панель проверки одного отклика
func (o *OwnerTaskManager) OpenReview(appID uuid.UUID) (*ApplicationReviewPanel, error) {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	app := o.findLocked(appID)
	if app == nil {
		return nil, fmt.Errorf("отклик %s: %w", appID, ErrNotFound)
	}
	seq := s.Modal.openLocked(Modal{Kind: ModalReview, TaskID: app.TaskID, ApplicationID: appID})
	return &ApplicationReviewPanel{
		s:      s,
		appID:  appID,
		seq:    seq,
		rating: task.DefaultRating,
	}, nil
}

// setStatus сразу меняет статус локально, затем подтверждает его ответом сервера
// или откатывает. Второй запрос по тому же отклику до ответа на первый отклоняется.
func (o *OwnerTaskManager) setStatus(ctx context.Context, appID uuid.UUID, next task.ApplicationStatus) error {
	s := o.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if _, busy := o.inFlight[appID]; busy {
		s.mu.Unlock()
		return ErrInFlight
	}
	current := o.findLocked(appID)
	if current == nil {
		s.mu.Unlock()
		return fmt.Errorf("отклик %s: %w", appID, ErrNotFound)
	}
	if !current.IsPending() {
		s.mu.Unlock()
		return fmt.Errorf("отклик в статусе %s: %w", current.Status, ErrActionDisabled)
	}
	pending := &pendingStatus{appID: appID, prev: current.Status, next: next}
	pending.apply(o.listsLocked()...)
	o.inFlight[appID] = pending
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	confirmed, err := s.api.UpdateApplicationStatus(callCtx, appID, next)
	cancel()

	s.mu.Lock()
	delete(o.inFlight, appID)
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		pending.rollback(o.listsLocked()...)
	} else if confirmed != nil {
		pending.commit(confirmed, o.listsLocked()...)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Board: Статус отклика не изменён",
			zap.String("application_id", appID.String()),
			zap.String("status", string(next)),
			zap.Error(err))
		s.notify(failure(TitleStatusFailed, err))
		return err
	}

	title := TitleAccepted
	if next == task.ApplicationRejected {
		title = TitleRejected
	}
	s.notify(success(title, ""))
	s.reload(ctx)
	return nil
}

// findLocked ищет отклик сначала в открытом окне, затем среди встроенных в задачи
func (o *OwnerTaskManager) findLocked(appID uuid.UUID) *task.Application {
	for _, list := range o.listsLocked() {
		for _, a := range list {
			if a.UUID == appID {
				return a
			}
		}
	}
	return nil
}

func (o *OwnerTaskManager) listsLocked() [][]*task.Application {
	return [][]*task.Application{o.apps, embeddedApplications(o.s.myTasks)}
}
