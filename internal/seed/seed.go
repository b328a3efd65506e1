package seed

import (
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Fixtures struct {
	Tasks []TaskFixture `yaml:"tasks"`
}

type TaskFixture struct {
	Title        string               `yaml:"title"`
	Description  string               `yaml:"description"`
	Cost         string               `yaml:"cost"`
	Duration     string               `yaml:"duration"`
	DueIn        string               `yaml:"due_in"`
	Priority     task.Priority        `yaml:"priority"`
	CreatedBy    string               `yaml:"created_by"`
	ProjectID    string               `yaml:"project_id"`
	Applications []ApplicationFixture `yaml:"applications"`
}

type ApplicationFixture struct {
	ApplicantID string                 `yaml:"applicant_id"`
	Message     string                 `yaml:"message"`
	BidAmount   string                 `yaml:"bid_amount"`
	Status      task.ApplicationStatus `yaml:"status"`
}

// Service - часть сервиса задач, через которую применяются фикстуры
type Service interface {
	CreateTask(ctx context.Context, owner, title string, options ...task.TaskOption) (*task.Task, error)
	Apply(ctx context.Context, userID string, taskID uuid.UUID, message string, bid *decimal.Decimal) (*task.Application, error)
	UpdateApplicationStatus(ctx context.Context, userID string, appID uuid.UUID, status task.ApplicationStatus) (*task.Application, error)
}

type Result struct {
	Tasks        int
	Applications int
}

func Load(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение фикстур: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("разбор фикстур: %w", err)
	}
	for i, t := range fixtures.Tasks {
		if t.Title == "" || t.CreatedBy == "" {
			return nil, fmt.Errorf("фикстура задачи %d: title и created_by обязательны", i)
		}
	}
	return &fixtures, nil
}

// Apply создаёт задачи и отклики через сервис, поэтому фикстуры проходят те же проверки, что и запросы API
func Apply(ctx context.Context, svc Service, fixtures *Fixtures) (Result, error) {
	var res Result
	now := time.Now()

	for _, tf := range fixtures.Tasks {
		options, err := tf.options(now)
		if err != nil {
			return res, err
		}

		created, err := svc.CreateTask(ctx, tf.CreatedBy, tf.Title, options...)
		if err != nil {
			return res, fmt.Errorf("создание задачи %q: %w", tf.Title, err)
		}
		res.Tasks++

		for _, af := range tf.Applications {
			if err := applyApplication(ctx, svc, created, af); err != nil {
				return res, fmt.Errorf("отклик %s на задачу %q: %w", af.ApplicantID, tf.Title, err)
			}
			res.Applications++
		}
	}

	logger.Info("Seed: Фикстуры загружены",
		zap.Int("tasks", res.Tasks),
		zap.Int("applications", res.Applications))
	return res, nil
}

func (tf TaskFixture) options(now time.Time) ([]task.TaskOption, error) {
	options := []task.TaskOption{
		task.WithDescription(tf.Description),
		task.WithDuration(tf.Duration),
		task.WithPriority(tf.Priority),
		task.WithProject(tf.ProjectID),
	}
	if tf.Cost != "" {
		cost, err := decimal.NewFromString(tf.Cost)
		if err != nil {
			return nil, fmt.Errorf("стоимость задачи %q: %w", tf.Title, err)
		}
		options = append(options, task.WithCost(cost))
	}
	if tf.DueIn != "" {
		dueIn, err := time.ParseDuration(tf.DueIn)
		if err != nil {
			return nil, fmt.Errorf("срок задачи %q: %w", tf.Title, err)
		}
		options = append(options, task.WithDueDate(now.Add(dueIn)))
	}
	return options, nil
}

func applyApplication(ctx context.Context, svc Service, t *task.Task, af ApplicationFixture) error {
	var bid *decimal.Decimal
	if af.BidAmount != "" {
		parsed, err := decimal.NewFromString(af.BidAmount)
		if err != nil {
			return fmt.Errorf("ставка: %w", err)
		}
		bid = &parsed
	}

	app, err := svc.Apply(ctx, af.ApplicantID, t.UUID, af.Message, bid)
	if err != nil {
		return err
	}

	switch af.Status {
	case "", task.ApplicationPending:
		return nil
	case task.ApplicationAccepted, task.ApplicationRejected:
		_, err = svc.UpdateApplicationStatus(ctx, t.CreatedBy, app.UUID, af.Status)
		return err
	default:
		return fmt.Errorf("неизвестный статус отклика %q", af.Status)
	}
}
