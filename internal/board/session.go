package board

import (
	"communityTasks/internal/models/task"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Session - корень экрана: переключатель вкладок над тремя представлениями.
// Безопасна для конкурентного использования; мьютекс не удерживается во время сетевых вызовов.
type Session struct {
	api      API
	viewer   string
	notifier Notifier
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	tab        Tab
	loading    bool
	generation uint64
	community  []*task.Task
	myTasks    []*task.Task
	myApps     []*task.Application

	Browser *TaskBrowser
	Owner   *OwnerTaskManager
	Worker  *WorkerDeliveryManager
	Modal   *ModalHost
}

type Option func(*Session)

func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSession создаёт сессию для пользователя viewer. Запросы сессии отменяются
// при Close или при отмене ctx.
func NewSession(ctx context.Context, api API, viewer string, options ...Option) *Session {
	s := &Session{
		api:      api,
		viewer:   viewer,
		notifier: nopNotifier{},
		log:      zap.NewNop(),
		tab:      TabExplore,
	}
	for _, opt := range options {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.Modal = &ModalHost{s: s}
	s.Browser = &TaskBrowser{s: s}
	s.Owner = &OwnerTaskManager{s: s, inFlight: make(map[uuid.UUID]*pendingStatus)}
	s.Worker = &WorkerDeliveryManager{s: s}
	return s
}

func (s *Session) Viewer() string {
	return s.viewer
}

// Close отменяет все запросы сессии; ответы, пришедшие после закрытия, отбрасываются
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.log.Debug("Board: Сессия закрыта")
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// SwitchTab только меняет выбранную вкладку, данные не перезапрашиваются
func (s *Session) SwitchTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = tab
	return nil
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Load одновременно загружает задачи сообщества, задачи пользователя и его отклики.
// Каждый набор сохраняется по мере получения, если за это время не начался новый Load
// и сессия не закрыта.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.generation++
	gen := s.generation
	s.loading = true
	s.mu.Unlock()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks, err := s.api.ListCommunityTasks(gctx)
		if err != nil {
			return fmt.Errorf("задачи сообщества: %w", err)
		}
		s.store(gen, func() { s.community = tasks })
		return nil
	})
	g.Go(func() error {
		tasks, err := s.api.ListMyTasks(gctx)
		if err != nil {
			return fmt.Errorf("мои задачи: %w", err)
		}
		s.store(gen, func() { s.myTasks = tasks })
		return nil
	})
	g.Go(func() error {
		apps, err := s.api.ListMyApplications(gctx)
		if err != nil {
			return fmt.Errorf("мои отклики: %w", err)
		}
		s.store(gen, func() { s.myApps = apps })
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	stale := s.closed || gen != s.generation
	if !stale {
		s.loading = false
	}
	s.mu.Unlock()

	if stale {
		s.log.Debug("Board: Результат загрузки устарел", zap.Uint64("generation", gen))
		if s.Closed() {
			return ErrSessionClosed
		}
		return err
	}
	if err != nil {
		s.log.Warn("Board: Ошибка загрузки данных", zap.Error(err))
		s.notify(failure(TitleLoadFailed, err))
		return err
	}

	s.log.Debug("Board: Данные загружены", zap.Uint64("generation", gen))
	return nil
}

func (s *Session) store(gen uint64, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return
	}
	apply()
}

// reload вызывается после каждого изменяющего действия
func (s *Session) reload(ctx context.Context) {
	if err := s.Load(ctx); err != nil {
		s.log.Debug("Board: Обновление после действия не удалось", zap.Error(err))
	}
}

// bind ограничивает ctx временем жизни сессии
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// notify не вызывает Notifier после закрытия сессии
func (s *Session) notify(n Notification) {
	if s.Closed() {
		return
	}
	s.notifier.Notify(n)
}

func (s *Session) findCommunityLocked(taskID uuid.UUID) *task.Task {
	for _, t := range s.community {
		if t.UUID == taskID {
			return t
		}
	}
	return nil
}

func (s *Session) findMyTaskLocked(taskID uuid.UUID) *task.Task {
	for _, t := range s.myTasks {
		if t.UUID == taskID {
			return t
		}
	}
	return nil
}

func (s *Session) findMyApplicationLocked(appID uuid.UUID) *task.Application {
	for _, a := range s.myApps {
		if a.UUID == appID {
			return a
		}
	}
	return nil
}
