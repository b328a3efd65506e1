package inmemory

import (
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	repo "communityTasks/internal/repository"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

const (
	tableTasks        = "tasks"
	tableApplications = "applications"
)

// записи хранятся как неизменяемые снимки, наружу всегда отдаются копии
type taskRecord struct {
	ID     string
	Owner  string
	Status string
	Task   *task.Task
}

type applicationRecord struct {
	ID          string
	TaskID      string
	Applicant   string
	Application *task.Application
}

type TaskStorage struct {
	db *memdb.MemDB
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableTasks: {
				Name: tableTasks,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"owner": {
						Name:    "owner",
						Indexer: &memdb.StringFieldIndex{Field: "Owner"},
					},
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
			tableApplications: {
				Name: tableApplications,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"task": {
						Name:    "task",
						Indexer: &memdb.StringFieldIndex{Field: "TaskID"},
					},
					"applicant": {
						Name:    "applicant",
						Indexer: &memdb.StringFieldIndex{Field: "Applicant"},
					},
					"task_applicant": {
						Name:   "task_applicant",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "TaskID"},
								&memdb.StringFieldIndex{Field: "Applicant"},
							},
						},
					},
				},
			},
		},
	}
}

func NewTaskStorage() *TaskStorage {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		// схема статична, ошибка здесь означает ошибку программиста
		panic(fmt.Sprintf("inmemory: неверная схема: %v", err))
	}
	return &TaskStorage{db: db}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func newTaskRecord(t *task.Task) *taskRecord {
	stored := t.Clone()
	stored.Applications = nil
	return &taskRecord{
		ID:     stored.UUID.String(),
		Owner:  stored.CreatedBy,
		Status: string(stored.Status),
		Task:   stored,
	}
}

func newApplicationRecord(a *task.Application) *applicationRecord {
	stored := a.Clone()
	return &applicationRecord{
		ID:          stored.UUID.String(),
		TaskID:      stored.TaskID.String(),
		Applicant:   stored.ApplicantID,
		Application: stored,
	}
}

func (s *TaskStorage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableTasks, "id", taskToCreate.UUID.String())
	if err != nil {
		return fmt.Errorf("поиск задачи: %w", err)
	}
	if existing != nil {
		return repo.ErrDuplicate
	}

	taskToCreate.CreatedAt = time.Now()
	taskToCreate.Version = 1
	if err := txn.Insert(tableTasks, newTaskRecord(taskToCreate)); err != nil {
		return fmt.Errorf("добавление задачи: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, taskToUpdate *task.Task) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := updateTaskTxn(txn, taskToUpdate); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func updateTaskTxn(txn *memdb.Txn, taskToUpdate *task.Task) error {
	raw, err := txn.First(tableTasks, "id", taskToUpdate.UUID.String())
	if err != nil {
		return fmt.Errorf("поиск задачи: %w", err)
	}
	if raw == nil {
		return repo.ErrNotFound
	}
	if raw.(*taskRecord).Task.Version != taskToUpdate.Version {
		return repo.ErrVersionConflict
	}

	now := time.Now()
	taskToUpdate.UpdatedAt = &now
	taskToUpdate.Version++
	if err := txn.Insert(tableTasks, newTaskRecord(taskToUpdate)); err != nil {
		return fmt.Errorf("обновление задачи: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableTasks, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	if raw == nil {
		return nil, repo.ErrNotFound
	}
	return raw.(*taskRecord).Task.Clone(), nil
}

// получение задач с определённым статусом
func (s *TaskStorage) GetStatusedWithLimit(ctx context.Context, page, limit int, status task.Status) ([]*task.Task, error) {
	return s.listTasks(page, limit, "status", string(status))
}

// получение задач владельца
func (s *TaskStorage) GetOwnedWithLimit(ctx context.Context, page, limit int, owner string) ([]*task.Task, error) {
	return s.listTasks(page, limit, "owner", owner)
}

func (s *TaskStorage) listTasks(page, limit int, index, value string) ([]*task.Task, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableTasks, index, value)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	res := []*task.Task{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		res = append(res, raw.(*taskRecord).Task.Clone())
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return paginate(res, page, limit), nil
}

// открытые задачи с истёкшим сроком, для фонового воркера
func (s *TaskStorage) GetOpenTasksDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableTasks, "status", string(task.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	var tasks []*task.Task
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if len(tasks) >= limit {
			break
		}
		t := raw.(*taskRecord).Task
		if t.DueDate != nil && t.DueDate.Before(deadline) {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks, nil
}

func (s *TaskStorage) CreateApplication(ctx context.Context, app *task.Application) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableApplications, "task_applicant", app.TaskID.String(), app.ApplicantID)
	if err != nil {
		return fmt.Errorf("поиск отклика: %w", err)
	}
	if existing != nil {
		return repo.ErrDuplicate
	}

	app.CreatedAt = time.Now()
	app.Version = 1
	if err := txn.Insert(tableApplications, newApplicationRecord(app)); err != nil {
		return fmt.Errorf("добавление отклика: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *TaskStorage) UpdateApplication(ctx context.Context, app *task.Application) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := updateApplicationTxn(txn, app); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func updateApplicationTxn(txn *memdb.Txn, app *task.Application) error {
	raw, err := txn.First(tableApplications, "id", app.UUID.String())
	if err != nil {
		return fmt.Errorf("поиск отклика: %w", err)
	}
	if raw == nil {
		return repo.ErrNotFound
	}
	if raw.(*applicationRecord).Application.Version != app.Version {
		return repo.ErrVersionConflict
	}

	now := time.Now()
	app.UpdatedAt = &now
	app.Version++
	if err := txn.Insert(tableApplications, newApplicationRecord(app)); err != nil {
		return fmt.Errorf("обновление отклика: %w", err)
	}
	return nil
}

// SaveTransition: обе записи обновляются в одной транзакции memdb
func (s *TaskStorage) SaveTransition(ctx context.Context, t *task.Task, app *task.Application) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	taskVersion, appVersion := t.Version, app.Version
	if err := updateTaskTxn(txn, t); err != nil {
		return err
	}
	if err := updateApplicationTxn(txn, app); err != nil {
		t.Version = taskVersion
		app.Version = appVersion
		return err
	}
	txn.Commit()
	return nil
}

func (s *TaskStorage) GetApplicationByID(ctx context.Context, id uuid.UUID) (*task.Application, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableApplications, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("получение отклика: %w", err)
	}
	if raw == nil {
		return nil, repo.ErrNotFound
	}
	return raw.(*applicationRecord).Application.Clone(), nil
}

func (s *TaskStorage) GetApplicationsByTask(ctx context.Context, taskID uuid.UUID) ([]*task.Application, error) {
	apps, err := s.listApplications("task", taskID.String())
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *TaskStorage) GetApplicationsByApplicant(ctx context.Context, page, limit int, applicant string) ([]*task.Application, error) {
	apps, err := s.listApplications("applicant", applicant)
	if err != nil {
		return nil, err
	}
	return paginate(apps, page, limit), nil
}

func (s *TaskStorage) listApplications(index, value string) ([]*task.Application, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableApplications, index, value)
	if err != nil {
		return nil, fmt.Errorf("получение откликов: %w", err)
	}

	res := []*task.Application{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		res = append(res, raw.(*applicationRecord).Application.Clone())
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *TaskStorage) RatingSummary(ctx context.Context, userID string) (task.RatingSummary, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableApplications, "applicant", userID)
	if err != nil {
		return task.RatingSummary{}, fmt.Errorf("получение оценок: %w", err)
	}

	count, sum := 0, 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		app := raw.(*applicationRecord).Application
		if app.Rating != nil {
			count++
			sum += *app.Rating
		}
	}
	return task.NewRatingSummary(userID, count, sum), nil
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		limit = repo.DefaultLimit
	}
	offset := repo.Offset(page, limit)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
