package sqlite

import (
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	repo "communityTasks/internal/repository"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const taskColumns = `uuid, title, description, cost, duration, due_date, priority, status,
	created_by, project_id, created_at, updated_at, version`

const applicationColumns = `uuid, task_id, applicant_id, message, bid_amount, status, delivery_status,
	delivery_content, delivery_feedback, rating, created_at, updated_at, version`

// Storage хранит задачи в одном файле SQLite; подходит для локального запуска без PostgreSQL
type Storage struct {
	db *sql.DB
}

// execer реализуют и *sql.DB, и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func Open(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("пустой путь к базе данных")
	}
	if err := ensureDir(dbPath); err != nil {
		return nil, fmt.Errorf("создание каталога базы: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err)
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Storage{db: conn}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("Repository: Подключение к SQLite", zap.String("path", dbPath))
	return s, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Storage) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			uuid TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			cost TEXT NOT NULL DEFAULT '0',
			duration TEXT NOT NULL DEFAULT '',
			due_date DATETIME,
			priority TEXT NOT NULL DEFAULT 'normal',
			status TEXT NOT NULL DEFAULT 'open',
			created_by TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS task_applications (
			uuid TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES tasks(uuid) ON DELETE CASCADE,
			applicant_id TEXT NOT NULL,
			message TEXT NOT NULL,
			bid_amount TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			delivery_status TEXT NOT NULL DEFAULT 'none',
			delivery_content TEXT NOT NULL DEFAULT '',
			delivery_feedback TEXT NOT NULL DEFAULT '',
			rating INTEGER CHECK (rating BETWEEN 1 AND 5),
			created_at DATETIME NOT NULL,
			updated_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1,
			UNIQUE (task_id, applicant_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks(created_by);`,
		`CREATE INDEX IF NOT EXISTS idx_task_applications_task ON task_applications(task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_task_applications_applicant ON task_applications(applicant_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			logger.Error("Repository: Ошибка миграции SQLite", err)
			return fmt.Errorf("миграция: %w", err)
		}
	}
	return nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	logger.Info("Repository: Закрытие SQLite")
	return s.db.Close()
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func scanTask(row rowScanner) (*task.Task, error) {
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

func scanApplication(row rowScanner) (*task.Application, error) {
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

func (s *Storage) CreateTask(ctx context.Context, t *task.Task) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks
		(uuid, title, description, cost, duration, due_date, priority, status, created_by, project_id, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		t.UUID, t.Title, t.Description, t.Cost, t.Duration, utc(t.DueDate),
		t.Priority, t.Status, t.CreatedBy, t.ProjectID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Не удалось добавить задачу", err)
		return fmt.Errorf("добавление задачи: %w", err)
	}
	t.CreatedAt = now
	t.Version = 1
	return nil
}

func (s *Storage) UpdateTask(ctx context.Context, t *task.Task) error {
	return updateTask(ctx, s.db, t)
}

func updateTask(ctx context.Context, db execer, t *task.Task) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `UPDATE tasks
		SET title = ?, description = ?, cost = ?, duration = ?, due_date = ?, priority = ?,
			status = ?, project_id = ?, updated_at = ?, version = version + 1
		WHERE uuid = ? AND version = ?`,
		t.Title, t.Description, t.Cost, t.Duration, utc(t.DueDate), t.Priority,
		t.Status, t.ProjectID, now, t.UUID, t.Version,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}
	if err := checkAffected(res, "task_id", t.UUID, t.Version); err != nil {
		return err
	}
	t.UpdatedAt = &now
	t.Version++
	return nil
}

// utc: sqlite сравнивает даты как строки, поэтому все даты пишутся в UTC
func utc(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	u := ts.UTC()
	return &u
}

func checkAffected(res sql.Result, key string, id uuid.UUID, version int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("проверка обновления: %w", err)
	}
	if n == 0 {
		logger.Warn("Конфликт версий при обновлении",
			zap.String(key, id.String()),
			zap.Int("expected_version", version))
		return repo.ErrVersionConflict
	}
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE uuid = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err)
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return t, nil
}

func (s *Storage) GetStatusedWithLimit(ctx context.Context, page, limit int, status task.Status) ([]*task.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		status, limit, repo.Offset(page, limit))
}

func (s *Storage) GetOwnedWithLimit(ctx context.Context, page, limit int, owner string) ([]*task.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE created_by = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		owner, limit, repo.Offset(page, limit))
}

func (s *Storage) GetOpenTasksDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status = ? AND due_date IS NOT NULL AND due_date < ? LIMIT ?`,
		task.StatusOpen, deadline.UTC(), limit)
}

func (s *Storage) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err)
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
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

func (s *Storage) CreateApplication(ctx context.Context, a *task.Application) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO task_applications
		(uuid, task_id, applicant_id, message, bid_amount, status, delivery_status, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		a.UUID, a.TaskID, a.ApplicantID, a.Message, a.BidAmount, a.Status, a.DeliveryStatus, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			logger.Info("Repository: Повторный отклик",
				zap.String("task_id", a.TaskID.String()),
				zap.String("applicant", a.ApplicantID))
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Не удалось добавить отклик", err)
		return fmt.Errorf("добавление отклика: %w", err)
	}
	a.CreatedAt = now
	a.Version = 1
	return nil
}

func (s *Storage) UpdateApplication(ctx context.Context, a *task.Application) error {
	return updateApplication(ctx, s.db, a)
}

func updateApplication(ctx context.Context, db execer, a *task.Application) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `UPDATE task_applications
		SET status = ?, delivery_status = ?, delivery_content = ?, delivery_feedback = ?,
			rating = ?, bid_amount = ?, updated_at = ?, version = version + 1
		WHERE uuid = ? AND version = ?`,
		a.Status, a.DeliveryStatus, a.DeliveryContent, a.DeliveryFeedback,
		a.Rating, a.BidAmount, now, a.UUID, a.Version,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить отклик", err)
		return fmt.Errorf("обновление отклика: %w", err)
	}
	if err := checkAffected(res, "application_id", a.UUID, a.Version); err != nil {
		return err
	}
	a.UpdatedAt = &now
	a.Version++
	return nil
}

func (s *Storage) SaveTransition(ctx context.Context, t *task.Task, a *task.Application) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback()

	taskVersion, appVersion := t.Version, a.Version
	if err := updateTask(ctx, tx, t); err != nil {
		return err
	}
	if err := updateApplication(ctx, tx, a); err != nil {
		t.Version = taskVersion
		return err
	}
	if err := tx.Commit(); err != nil {
		t.Version, a.Version = taskVersion, appVersion
		logger.Error("Repository: Не удалось зафиксировать транзакцию", err)
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

func (s *Storage) GetApplicationByID(ctx context.Context, id uuid.UUID) (*task.Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM task_applications WHERE uuid = ?`, id)
	a, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить отклик", err)
		return nil, fmt.Errorf("получение отклика: %w", err)
	}
	return a, nil
}

func (s *Storage) GetApplicationsByTask(ctx context.Context, taskID uuid.UUID) ([]*task.Application, error) {
	return s.queryApplications(ctx, `SELECT `+applicationColumns+` FROM task_applications
		WHERE task_id = ? ORDER BY created_at DESC`, taskID)
}

func (s *Storage) GetApplicationsByApplicant(ctx context.Context, page, limit int, applicant string) ([]*task.Application, error) {
	return s.queryApplications(ctx, `SELECT `+applicationColumns+` FROM task_applications
		WHERE applicant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		applicant, limit, repo.Offset(page, limit))
}

func (s *Storage) queryApplications(ctx context.Context, query string, args ...any) ([]*task.Application, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить отклики", err)
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
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return apps, nil
}

func (s *Storage) RatingSummary(ctx context.Context, userID string) (task.RatingSummary, error) {
	var count, sum int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(rating), COALESCE(SUM(rating), 0)
		FROM task_applications WHERE applicant_id = ? AND rating IS NOT NULL`, userID).Scan(&count, &sum)
	if err != nil {
		return task.RatingSummary{}, fmt.Errorf("получение рейтинга: %w", err)
	}
	return task.NewRatingSummary(userID, count, sum), nil
}
