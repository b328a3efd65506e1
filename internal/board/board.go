// Package board содержит состояние экранов биржи задач без привязки к отрисовке:
// обзор задач с откликами, задачи владельца, работа исполнителя, панель проверки
// и единственное открытое модальное окно.
//
// Все правила жизненного цикла проверяет сервер; board хранит локальное состояние,
// решает какие действия доступны и сообщает о результатах через Notifier.
package board

import (
	"communityTasks/internal/models/task"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// API - возможности сервера задач, которыми пользуется интерфейс.
// Apply возвращает ошибку, для которой errors.Is(err, task.ErrDuplicateApplication),
// если пользователь уже откликался на задачу.
type API interface {
	ListCommunityTasks(ctx context.Context) ([]*task.Task, error)
	ListMyTasks(ctx context.Context) ([]*task.Task, error)
	ListMyApplications(ctx context.Context) ([]*task.Application, error)

	Apply(ctx context.Context, taskID uuid.UUID, message string, bid *decimal.Decimal) (*task.Application, error)
	ListApplications(ctx context.Context, taskID uuid.UUID) ([]*task.Application, error)
	UpdateApplicationStatus(ctx context.Context, appID uuid.UUID, status task.ApplicationStatus) (*task.Application, error)
	SubmitDelivery(ctx context.Context, appID uuid.UUID, content string) (*task.Application, error)
	ReviewDelivery(ctx context.Context, appID uuid.UUID, decision task.DeliveryStatus, feedback string) (*task.Application, error)
	RateUser(ctx context.Context, appID uuid.UUID, rating int) (*task.Application, error)
}

var (
	ErrSessionClosed  = errors.New("сессия закрыта")
	ErrUnknownTab     = errors.New("неизвестная вкладка")
	ErrNotFound       = errors.New("объект не найден в текущем представлении")
	ErrOwnTask        = errors.New("нельзя откликнуться на собственную задачу")
	ErrActionDisabled = errors.New("действие сейчас недоступно")
	ErrInFlight       = errors.New("по этому отклику уже выполняется запрос")
	ErrNoModal        = errors.New("нужное модальное окно не открыто")
)

type Tab string

const (
	TabExplore Tab = "explore"
	TabMyTasks Tab = "my_tasks"
	TabMyWork  Tab = "my_work"
)

func (t Tab) Valid() bool {
	switch t {
	case TabExplore, TabMyTasks, TabMyWork:
		return true
	}
	return false
}

// Подписи, которые видит пользователь
const (
	LabelApply    = "Apply"
	LabelYourTask = "Your task"
)
