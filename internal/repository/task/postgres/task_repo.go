package postgres

import (
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	repo "communityTasks/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// код PostgreSQL unique_violation
const uniqueViolation = "23505"

// ErrInvalidConfig: строку подключения нельзя разобрать, повтор не поможет
var ErrInvalidConfig = errors.New("некорректная строка подключения")

const taskColumns = `uuid,
				title,
				description,
				cost,
				duration,
				due_date,
				priority,
				status,
				created_by,
				project_id,
				created_at,
				updated_at,
				version`

const applicationColumns = `uuid,
				task_id,
				applicant_id,
				message,
				bid_amount,
				status,
				delivery_status,
				delivery_content,
				delivery_feedback,
				rating,
				created_at,
				updated_at,
				version`

type Options struct {
	URL            string
	MaxConnections int32
	MinConnections int32
	IdleTimeout    time.Duration
}

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

// querier реализуют и пул, и транзакция
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w: %w", ErrInvalidConfig, err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConnections > 0 {
		config.MaxConns = opts.MaxConnections
	}
	if opts.MinConnections > 0 {
		config.MinConns = opts.MinConnections
	}
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, connString: opts.URL}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func warnIfSlow(start time.Time, threshold time.Duration) {
	if time.Since(start) > threshold {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.UUID,
		&t.Title,
		&t.Description,
		&t.Cost,
		&t.Duration,
		&t.DueDate,
		&t.Priority,
		&t.Status,
		&t.CreatedBy,
		&t.ProjectID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	return t, err
}

func scanApplication(row pgx.Row) (*task.Application, error) {
	a := &task.Application{}
	err := row.Scan(
		&a.UUID,
		&a.TaskID,
		&a.ApplicantID,
		&a.Message,
		&a.BidAmount,
		&a.Status,
		&a.DeliveryStatus,
		&a.DeliveryContent,
		&a.DeliveryFeedback,
		&a.Rating,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	return a, err
}

func (s *Storage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks
				(uuid, title, description, cost, duration, due_date, priority, status, created_by, project_id, created_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
				RETURNING created_at, version`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.UUID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.Cost,
		taskToCreate.Duration,
		taskToCreate.DueDate,
		taskToCreate.Priority,
		taskToCreate.Status,
		taskToCreate.CreatedBy,
		taskToCreate.ProjectID,
		time.Now(),
	).Scan(&taskToCreate.CreatedAt, &taskToCreate.Version)

	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	warnIfSlow(start, time.Millisecond*50)
	return nil
}

func (s *Storage) UpdateTask(ctx context.Context, taskToUpdate *task.Task) error {
	return updateTask(ctx, s.pool, taskToUpdate)
}

func updateTask(ctx context.Context, q querier, taskToUpdate *task.Task) error {
	start := time.Now()

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				cost = $3,
				duration = $4,
				due_date = $5,
				priority = $6,
				status = $7,
				project_id = $8,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $9 AND version = $10
			RETURNING updated_at, version`

	err := q.QueryRow(ctx, query,
		taskToUpdate.Title,
		taskToUpdate.Description,
		taskToUpdate.Cost,
		taskToUpdate.Duration,
		taskToUpdate.DueDate,
		taskToUpdate.Priority,
		taskToUpdate.Status,
		taskToUpdate.ProjectID,
		taskToUpdate.UUID,
		taskToUpdate.Version,
	).Scan(&taskToUpdate.UpdatedAt, &taskToUpdate.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Конфликт версий при обновлении задачи",
				zap.String("task_id", taskToUpdate.UUID.String()),
				zap.Int("expected_version", taskToUpdate.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}

	warnIfSlow(start, time.Millisecond*100)
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE uuid = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	warnIfSlow(start, time.Millisecond*100)
	return t, nil
}

// получение задач с определённым статусом
func (s *Storage) GetStatusedWithLimit(ctx context.Context, page, limit int, status task.Status) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE status = $1
				ORDER BY created_at DESC
				LIMIT $2 OFFSET $3`

	return s.queryTasks(ctx, limit, query, status, limit, repo.Offset(page, limit))
}

// получение задач владельца
func (s *Storage) GetOwnedWithLimit(ctx context.Context, page, limit int, owner string) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE created_by = $1
				ORDER BY created_at DESC
				LIMIT $2 OFFSET $3`

	return s.queryTasks(ctx, limit, query, owner, limit, repo.Offset(page, limit))
}

func (s *Storage) GetOpenTasksDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE status = $1
					AND due_date IS NOT NULL
					AND due_date < $2
				LIMIT $3`

	return s.queryTasks(ctx, limit, query, task.StatusOpen, deadline, limit)
}

func (s *Storage) queryTasks(ctx context.Context, limit int, query string, args ...any) ([]*task.Task, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	warnIfSlow(start, time.Millisecond*50+time.Millisecond*10*time.Duration(limit))
	return tasks, nil
}

func (s *Storage) CreateApplication(ctx context.Context, app *task.Application) error {
	start := time.Now()

	query := `INSERT INTO task_applications
				(uuid, task_id, applicant_id, message, bid_amount, status, delivery_status, created_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
				RETURNING created_at, version`

	err := s.pool.QueryRow(ctx, query,
		app.UUID,
		app.TaskID,
		app.ApplicantID,
		app.Message,
		app.BidAmount,
		app.Status,
		app.DeliveryStatus,
		time.Now(),
	).Scan(&app.CreatedAt, &app.Version)

	if err != nil {
		if isUniqueViolation(err) {
			logger.Info("Repository: Повторный отклик",
				zap.String("task_id", app.TaskID.String()),
				zap.String("applicant", app.ApplicantID))
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Не удалось добавить отклик", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление отклика: %w", err)
	}

	warnIfSlow(start, time.Millisecond*50)
	return nil
}

func (s *Storage) UpdateApplication(ctx context.Context, app *task.Application) error {
	return updateApplication(ctx, s.pool, app)
}

func updateApplication(ctx context.Context, q querier, app *task.Application) error {
	start := time.Now()

	query := `UPDATE task_applications
			SET status = $1,
				delivery_status = $2,
				delivery_content = $3,
				delivery_feedback = $4,
				rating = $5,
				bid_amount = $6,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $7 AND version = $8
			RETURNING updated_at, version`

	err := q.QueryRow(ctx, query,
		app.Status,
		app.DeliveryStatus,
		app.DeliveryContent,
		app.DeliveryFeedback,
		app.Rating,
		app.BidAmount,
		app.UUID,
		app.Version,
	).Scan(&app.UpdatedAt, &app.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Конфликт версий при обновлении отклика",
				zap.String("application_id", app.UUID.String()),
				zap.Int("expected_version", app.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить отклик", err)
		return fmt.Errorf("обновление отклика: %w", err)
	}

	warnIfSlow(start, time.Millisecond*100)
	return nil
}

// SaveTransition обновляет задачу и отклик в одной транзакции
func (s *Storage) SaveTransition(ctx context.Context, t *task.Task, app *task.Application) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logger.Error("Repository: Не удалось начать транзакцию", err)
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	taskVersion, appVersion := t.Version, app.Version
	if err := updateTask(ctx, tx, t); err != nil {
		return err
	}
	if err := updateApplication(ctx, tx, app); err != nil {
		t.Version = taskVersion
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		t.Version, app.Version = taskVersion, appVersion
		logger.Error("Repository: Не удалось зафиксировать транзакцию", err)
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

func (s *Storage) GetApplicationByID(ctx context.Context, id uuid.UUID) (*task.Application, error) {
	start := time.Now()

	query := `SELECT ` + applicationColumns + `
				FROM task_applications
				WHERE uuid = $1`

	a, err := scanApplication(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить отклик", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение отклика: %w", err)
	}

	warnIfSlow(start, time.Millisecond*100)
	return a, nil
}

func (s *Storage) GetApplicationsByTask(ctx context.Context, taskID uuid.UUID) ([]*task.Application, error) {
	query := `SELECT ` + applicationColumns + `
				FROM task_applications
				WHERE task_id = $1
				ORDER BY created_at DESC`

	return s.queryApplications(ctx, query, taskID)
}

func (s *Storage) GetApplicationsByApplicant(ctx context.Context, page, limit int, applicant string) ([]*task.Application, error) {
	query := `SELECT ` + applicationColumns + `
				FROM task_applications
				WHERE applicant_id = $1
				ORDER BY created_at DESC
				LIMIT $2 OFFSET $3`

	return s.queryApplications(ctx, query, applicant, limit, repo.Offset(page, limit))
}

func (s *Storage) queryApplications(ctx context.Context, query string, args ...any) ([]*task.Application, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить отклики", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение откликов: %w", err)
	}
	defer rows.Close()

	apps := []*task.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования отклика", zap.Error(err))
			continue
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	warnIfSlow(start, time.Millisecond*100)
	return apps, nil
}

func (s *Storage) RatingSummary(ctx context.Context, userID string) (task.RatingSummary, error) {
	query := `SELECT COUNT(rating), COALESCE(SUM(rating), 0)
				FROM task_applications
				WHERE applicant_id = $1 AND rating IS NOT NULL`

	var count, sum int
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&count, &sum); err != nil {
		logger.Error("Repository: Не удалось получить рейтинг", err)
		return task.RatingSummary{}, fmt.Errorf("получение рейтинга: %w", err)
	}
	return task.NewRatingSummary(userID, count, sum), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
