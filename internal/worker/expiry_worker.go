package worker

import (
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	repo "communityTasks/internal/repository"
	"communityTasks/internal/service"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval  = 5 * time.Minute
	DefaultBatchSize = 100
)

// ExpiryWorker периодически переводит открытые задачи с истёкшим сроком в expired
type ExpiryWorker struct {
	repo      service.TaskRepository
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewExpiryWorker(repo service.TaskRepository, interval *time.Duration, batchSize *int) *ExpiryWorker {
	intervalToSet := DefaultInterval
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}

	batchToSet := DefaultBatchSize
	if batchSize != nil && *batchSize > 0 {
		batchToSet = *batchSize
	}

	return &ExpiryWorker{
		repo:      repo,
		interval:  intervalToSet,
		batchSize: batchToSet,
		now:       time.Now,
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновая проверка сроков задач", zap.Time("started_at", w.now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая проверка останавливается")
			return
		}
	}
}

// Check обрабатывает одну пачку задач и возвращает число закрытых
func (w *ExpiryWorker) Check(ctx context.Context) int {
	start := time.Now()
	now := w.now()

	tasks, err := w.repo.GetOpenTasksDueBefore(ctx, now, w.batchSize)
	if err != nil {
		logger.Warn("Worker: Ошибка получения задач", zap.Error(err))
		return 0
	}

	expired := 0
	for _, t := range tasks {
		if err := w.expire(ctx, t, now); err != nil {
			logger.Warn("Worker: Ошибка обновления задачи",
				zap.String("task_id", t.UUID.String()),
				zap.Error(err))
			continue
		}
		expired++
	}

	logger.Info("Worker: Завершение проверки задач",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", len(tasks)),
		zap.Int("expired", expired))
	return expired
}

func (w *ExpiryWorker) expire(ctx context.Context, t *task.Task, now time.Time) error {
	if err := task.Expire(t, now); err != nil {
		return err
	}
	if err := w.repo.UpdateTask(ctx, t); err != nil {
		// задачу успели принять в работу между выборкой и обновлением
		if errors.Is(err, repo.ErrVersionConflict) {
			return fmt.Errorf("задача %s изменена параллельно: %w", t.UUID, err)
		}
		return fmt.Errorf("обновление статуса: %w", err)
	}
	return nil
}
