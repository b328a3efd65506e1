// Package client - HTTP-клиент сервиса задач. Реализует board.API, поэтому сессия
// интерфейса может работать с удалённым сервером так же, как с любой другой реализацией.
package client

import (
	"bytes"
	"communityTasks/internal/handlers/dto"
	"communityTasks/internal/models/task"
	"communityTasks/internal/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	DefaultPageSize = service.MaxLimit
	DefaultTimeout  = 15 * time.Second

	// защита от бесконечного обхода страниц при ошибке сервера
	maxPages = 1000
)

type Client struct {
	baseURL  *url.URL
	http     *http.Client
	base     *http.Client
	pageSize int
	timeout  time.Duration
}

type Option func(*Client)

// WithHTTPClient задаёт клиент, поверх которого добавляется авторизация
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.base = hc
		}
	}
}

func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = min(size, service.MaxLimit)
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New создаёт клиент сервера baseURL. token передаётся в заголовке Authorization: Bearer.
func New(baseURL, token string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("адрес сервера %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("адрес сервера %q должен содержать схему и хост", baseURL)
	}
	if token == "" {
		return nil, errors.New("токен доступа не задан")
	}

	c := &Client{
		baseURL:  u,
		base:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		pageSize: DefaultPageSize,
		timeout:  DefaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	c.http.Timeout = c.timeout
	return c, nil
}

// APIError - ответ сервера с кодом ошибки. Для DUPLICATE_APPLICATION
// errors.Is(err, task.ErrDuplicateApplication) возвращает true.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.Code == service.CodeDuplicateApplication {
		return task.ErrDuplicateApplication
	}
	return nil
}

type listPage struct {
	Tasks        []*task.Task        `json:"tasks"`
	Applications []*task.Application `json:"applications"`
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) CreateTask(ctx context.Context, req dto.CreateTaskRequest) (*task.Task, error) {
	var out dto.TaskEnvelope
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

func (c *Client) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Task, error) {
	var out dto.TaskEnvelope
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

func (c *Client) ListCommunityTasks(ctx context.Context) ([]*task.Task, error) {
	return c.listTasks(ctx, "/tasks/community")
}

func (c *Client) ListMyTasks(ctx context.Context) ([]*task.Task, error) {
	return c.listTasks(ctx, "/tasks/mine")
}

func (c *Client) ListMyApplications(ctx context.Context) ([]*task.Application, error) {
	var all []*task.Application
	err := c.paginate(ctx, "/applications/mine", func(p listPage) int {
		all = append(all, p.Applications...)
		return len(p.Applications)
	})
	return all, err
}

func (c *Client) Apply(ctx context.Context, taskID uuid.UUID, message string, bid *decimal.Decimal) (*task.Application, error) {
	req := dto.ApplyRequest{Message: message, BidAmount: bid}
	return c.application(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/applications", req)
}

func (c *Client) ListApplications(ctx context.Context, taskID uuid.UUID) ([]*task.Application, error) {
	var out dto.ApplicationsEnvelope
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID.String()+"/applications", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

func (c *Client) UpdateApplicationStatus(ctx context.Context, appID uuid.UUID, status task.ApplicationStatus) (*task.Application, error) {
	req := dto.UpdateApplicationStatusRequest{Status: status}
	return c.application(ctx, http.MethodPatch, "/applications/"+appID.String()+"/status", req)
}

func (c *Client) SubmitDelivery(ctx context.Context, appID uuid.UUID, content string) (*task.Application, error) {
	req := dto.DeliveryRequest{Content: content}
	return c.application(ctx, http.MethodPost, "/applications/"+appID.String()+"/delivery", req)
}

func (c *Client) ReviewDelivery(ctx context.Context, appID uuid.UUID, decision task.DeliveryStatus, feedback string) (*task.Application, error) {
	req := dto.ReviewRequest{Decision: decision, Feedback: feedback}
	return c.application(ctx, http.MethodPost, "/applications/"+appID.String()+"/review", req)
}

func (c *Client) RateUser(ctx context.Context, appID uuid.UUID, rating int) (*task.Application, error) {
	req := dto.RatingRequest{Rating: rating}
	return c.application(ctx, http.MethodPost, "/applications/"+appID.String()+"/rating", req)
}

// WhoAmI возвращает идентификатор пользователя, которому сервер сопоставил токен
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var out dto.UserEnvelope
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &out); err != nil {
		return "", err
	}
	return out.User.UserID, nil
}

func (c *Client) GetUserRating(ctx context.Context, userID string) (task.RatingSummary, error) {
	var out dto.RatingEnvelope
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/rating", nil, nil, &out)
	return out.Rating, err
}

func (c *Client) application(ctx context.Context, method, path string, body any) (*task.Application, error) {
	var out dto.ApplicationEnvelope
	if err := c.do(ctx, method, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out.Application, nil
}

func (c *Client) listTasks(ctx context.Context, path string) ([]*task.Task, error) {
	var all []*task.Task
	err := c.paginate(ctx, path, func(p listPage) int {
		all = append(all, p.Tasks...)
		return len(p.Tasks)
	})
	return all, err
}

// paginate запрашивает страницы, пока очередная не окажется неполной
func (c *Client) paginate(ctx context.Context, path string, collect func(listPage) int) error {
	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(c.pageSize))

		var p listPage
		if err := c.do(ctx, http.MethodGet, path, query, nil, &p); err != nil {
			return err
		}
		if collect(p) < c.pageSize {
			return nil
		}
	}
	return fmt.Errorf("%s: превышено число страниц (%d)", path, maxPages)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("кодирование запроса %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("разбор ответа %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload dto.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr.Code = strings.ToUpper(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))

	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		// ошибки валидации приходят без кода: {"error": "<текст>"}
		if payload.Message == "" {
			apiErr.Message = payload.Error
			return apiErr
		}
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
		apiErr.Details = payload.Details
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
