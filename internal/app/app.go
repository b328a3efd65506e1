package app

import (
	"communityTasks/internal/config"
	"communityTasks/internal/handlers"
	"communityTasks/internal/logger"
	"communityTasks/internal/middleware"
	"communityTasks/internal/repository/task/inmemory"
	"communityTasks/internal/repository/task/postgres"
	"communityTasks/internal/repository/task/sqlite"
	"communityTasks/internal/seed"
	"communityTasks/internal/service"
	"communityTasks/internal/worker"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "community-tasks"

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository service.TaskRepository // интерфейс!
	service    *service.TaskService
	worker     *worker.ExpiryWorker
	shutdowns  []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init собирает зависимости: логгер, хранилище, начальные данные, сервис, роутер и воркер
func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	if err := a.initRepository(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}

	svc := service.NewTaskService(a.repository, service.RepoType(a.config.Repository.Type))
	a.service = &svc

	if a.config.Seed.File != "" {
		if err := a.seed(ctx); err != nil {
			a.Shutdown()
			return nil, err
		}
	}

	a.worker = worker.NewExpiryWorker(a.repository, &a.config.Worker.Interval, &a.config.Worker.BatchSize)
	a.initRouter()

	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.router, serviceName),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("Приложение инициализировано",
		zap.String("repository", a.config.Repository.Type),
		zap.String("addr", a.server.Addr))
	return a, nil
}

func (a *App) initRepository(ctx context.Context) error {
	switch service.RepoType(a.config.Repository.Type) {
	case service.PostgresType:
		storage, err := connectPostgres(ctx, a.config.Database)
		if err != nil {
			return fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		if err := storage.Migrate(); err != nil {
			storage.Close()
			return fmt.Errorf("миграции PostgreSQL: %w", err)
		}
		a.repository = storage
		a.shutdowns = append(a.shutdowns, storage.Close)

	case service.SQLiteType:
		storage, err := sqlite.Open(a.config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("открытие SQLite: %w", err)
		}
		a.repository = storage
		a.shutdowns = append(a.shutdowns, func() {
			if err := storage.Close(); err != nil {
				logger.Error("Repository: Ошибка закрытия SQLite", err)
			}
		})

	default:
		a.repository = inmemory.NewTaskStorage()
		logger.Info("Repository: Используется хранилище в памяти")
	}
	return nil
}

// connectPostgres повторяет подключение с экспоненциальной задержкой,
// пока база поднимается вместе с сервисом
func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Storage, error) {
	var storage *postgres.Storage
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.ConnectRetries), ctx)

	err := backoff.RetryNotify(func() error {
		s, err := postgres.New(ctx, postgres.Options{
			URL:            cfg.URL,
			MaxConnections: cfg.MaxConnections,
			MinConnections: cfg.MinConnections,
			IdleTimeout:    cfg.IdleTimeout,
		})
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		storage = s
		return nil
	}, policy, func(err error, next time.Duration) {
		logger.Warn("Repository: PostgreSQL недоступен, повтор подключения",
			zap.Duration("retry_in", next),
			zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	return storage, nil
}

func (a *App) seed(ctx context.Context) error {
	fixtures, err := seed.Load(a.config.Seed.File)
	if err != nil {
		return fmt.Errorf("загрузка начальных данных: %w", err)
	}
	if _, err := seed.Apply(ctx, a.service, fixtures); err != nil {
		return fmt.Errorf("применение начальных данных: %w", err)
	}
	return nil
}

func (a *App) initRouter() {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))
	r.Use(chimw.Timeout(a.config.Server.RequestTimeout))

	handler := handlers.NewTaskHandler(a.service)
	handler.Register(r, middleware.Auth(a.config.Tokens()))

	a.router = r
}

// Handler возвращает корневой обработчик сервера
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run запускает сервер и воркер и блокируется до SIGINT/SIGTERM или отмены ctx
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.worker.Start(workerCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Получен сигнал завершения")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http-сервер: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", err)
	}

	cancelWorker()
	wg.Wait()
	a.Shutdown()

	return runErr
}

// Shutdown выполняет функции завершения в обратном порядке
func (a *App) Shutdown() {
	for _, fn := range slices.Backward(a.shutdowns) {
		fn()
	}
	a.shutdowns = nil
}
