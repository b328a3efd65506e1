package handlers

import (
	"communityTasks/internal/handlers/dto"
	"communityTasks/internal/logger"
	"communityTasks/internal/models/task"
	"communityTasks/internal/service"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const serviceName = "community-tasks"

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

// Register подключает маршруты; всё кроме /health проходит через auth
func (h *TaskHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.PostTask)
			r.Get("/community", h.GetCommunityTasks)
			r.Get("/mine", h.GetMyTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTaskByID)
				r.Post("/applications", h.Apply)
				r.Get("/applications", h.GetTaskApplications)
			})
		})

		r.Route("/applications", func(r chi.Router) {
			r.Get("/mine", h.GetMyApplications)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/status", h.UpdateApplicationStatus)
				r.Post("/delivery", h.SubmitDelivery)
				r.Post("/review", h.ReviewDelivery)
				r.Post("/rating", h.RateUser)
			})
		})

		r.Get("/me", h.GetMe)
		r.Get("/users/{id}/rating", h.GetUserRating)
	})
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Сервис нездоров", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("service", serviceName),
			toPayload("status", "unavailable"),
			toPayload("error", err.Error()))
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("service", serviceName),
		toPayload("status", "ok"),
		toPayload("time", time.Now().UTC()))
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	if request.Priority != "" && !request.Priority.Valid() {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "priority"),
			zap.String("error", "unknown"),
			zap.String("client_ip", r.RemoteAddr))
		handleBusinessError(w, service.NewValidationError("priority", "допустимы urgent, high, normal, low"))
		return
	}

	options := []task.TaskOption{
		task.WithDescription(request.Description),
		task.WithDuration(request.Duration),
		task.WithPriority(request.Priority),
		task.WithProject(request.ProjectID),
	}
	if request.Cost != nil {
		if request.Cost.IsNegative() {
			logger.Warn("HTTP: Ошибка валидации",
				zap.String("field", "cost"),
				zap.String("error", "negative"),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, "стоимость не может быть отрицательной")
			return
		}
		options = append(options, task.WithCost(*request.Cost))
	}
	if request.DueDate != nil {
		if time.Now().After(*request.DueDate) {
			logger.Warn("HTTP: Ошибка валидации",
				zap.String("field", "due_date"),
				zap.String("error", "wrong_value"),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, "дедлайн не может быть в прошлом")
			return
		}
		options = append(options, task.WithDueDate(*request.DueDate))
	}

	logger.Info("HTTP: Вызов сервиса создания задачи")
	created, err := h.TaskService.CreateTask(r.Context(), userID, request.Title, options...)
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", created))
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	found, err := h.TaskService.GetTaskByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", found.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", found))
}

func (h *TaskHandler) GetCommunityTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	tasks, err := h.TaskService.GetCommunityTasks(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, r, err, "community_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи сообщества получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", tasks))
}

func (h *TaskHandler) GetMyTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	tasks, err := h.TaskService.GetOwnedTasks(r.Context(), userID, page, limit)
	if err != nil {
		handleServiceError(w, r, err, "my_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи владельца получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", tasks))
}

func (h *TaskHandler) GetMyApplications(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	apps, err := h.TaskService.GetMyApplications(r.Context(), userID, page, limit)
	if err != nil {
		handleServiceError(w, r, err, "my_applications")
		return
	}

	logger.Info("HTTP_OUT: Отклики пользователя получены",
		zap.Int("count", len(apps)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("applications", apps))
}

func (h *TaskHandler) Apply(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r)
	if !ok {
		return
	}

	var request dto.ApplyRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	app, err := h.TaskService.Apply(r.Context(), userID, taskID, request.Message, request.BidAmount)
	if err != nil {
		handleServiceError(w, r, err, "apply")
		return
	}

	logger.Info("HTTP_OUT: Отклик создан",
		zap.String("application_id", app.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("application", app))
}

func (h *TaskHandler) GetTaskApplications(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r)
	if !ok {
		return
	}

	apps, err := h.TaskService.GetTaskApplications(r.Context(), userID, taskID)
	if err != nil {
		handleServiceError(w, r, err, "task_applications")
		return
	}

	logger.Info("HTTP_OUT: Отклики задачи получены",
		zap.String("task_id", taskID.String()),
		zap.Int("count", len(apps)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("applications", apps))
}

func (h *TaskHandler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, ok := parseID(w, r)
	if !ok {
		return
	}

	var request dto.UpdateApplicationStatusRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	app, err := h.TaskService.UpdateApplicationStatus(r.Context(), userID, appID, request.Status)
	if err != nil {
		handleServiceError(w, r, err, "update_application_status")
		return
	}

	logger.Info("HTTP_OUT: Статус отклика обновлён",
		zap.String("application_id", appID.String()),
		zap.String("status", string(app.Status)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("application", app))
}

func (h *TaskHandler) SubmitDelivery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, ok := parseID(w, r)
	if !ok {
		return
	}

	var request dto.DeliveryRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	app, err := h.TaskService.SubmitDelivery(r.Context(), userID, appID, request.Content)
	if err != nil {
		handleServiceError(w, r, err, "submit_delivery")
		return
	}

	logger.Info("HTTP_OUT: Работа сдана",
		zap.String("application_id", appID.String()),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("application", app))
}

func (h *TaskHandler) ReviewDelivery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, ok := parseID(w, r)
	if !ok {
		return
	}

	var request dto.ReviewRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	app, err := h.TaskService.ReviewDelivery(r.Context(), userID, appID, request.Decision, request.Feedback)
	if err != nil {
		handleServiceError(w, r, err, "review_delivery")
		return
	}

	logger.Info("HTTP_OUT: Работа проверена",
		zap.String("application_id", appID.String()),
		zap.String("decision", string(request.Decision)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("application", app))
}

func (h *TaskHandler) RateUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	appID, ok := parseID(w, r)
	if !ok {
		return
	}

	var request dto.RatingRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	app, err := h.TaskService.RateUser(r.Context(), userID, appID, request.Rating)
	if err != nil {
		handleServiceError(w, r, err, "rate_user")
		return
	}

	logger.Info("HTTP_OUT: Исполнитель оценён",
		zap.String("application_id", appID.String()),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("application", app))
}

// GetMe возвращает пользователя, которому принадлежит токен
func (h *TaskHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("user", dto.UserInfo{UserID: userID}))
}

func (h *TaskHandler) GetUserRating(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID := chi.URLParam(r, "id")
	if userID == "" {
		responseWithError(w, http.StatusBadRequest, "id пользователя не может быть пустым")
		return
	}

	summary, err := h.TaskService.GetUserRating(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, "user_rating")
		return
	}

	responseWithJSON(w, http.StatusOK, toPayload("rating", summary))
}
