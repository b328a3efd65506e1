package middleware

import (
	"communityTasks/internal/logger"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	RequestIdKey contextKey = "request_id"
	UserKey      contextKey = "user_id"
)

const maxRequestIDLen = 64

// RequestID берёт X-Request-ID клиента или выдаёт новый uuid
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIdKey, requestID)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.wroteHeader {
		return
	}
	sr.status = code
	sr.wroteHeader = true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.size += n
	return n, err
}

// Logging пишет начало и конец запроса; в конце добавляется шаблон маршрута chi
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GetRequestID(r.Context())

		logger.HttpRequestInfo(r, "HTTP_IN: Начало запроса", zap.String("request_id", requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		level := zap.InfoLevel
		switch {
		case rec.status >= http.StatusInternalServerError:
			level = zap.ErrorLevel
		case rec.status >= http.StatusBadRequest:
			level = zap.WarnLevel
		}
		logger.Log(level, "HTTP_OUT: Завершение запроса",
			zap.String("request_id", requestID),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Int("bytes_written", rec.size),
			zap.Duration("ms", time.Since(start)))
	})
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIdKey).(string)
	return id
}

type window struct {
	count   int
	resetAt time.Time
}

// окна с истёкшим сроком удаляются, когда клиентов становится больше этого числа
const sweepThreshold = 1024

// RateLimit ограничивает число запросов с одного IP в минуту; rpm <= 0 отключает лимит
func RateLimit(rpm int) func(http.Handler) http.Handler {
	clients := make(map[string]*window)
	var mtx sync.Mutex
	period := time.Minute

	return func(next http.Handler) http.Handler {
		if rpm <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			now := time.Now()

			mtx.Lock()
			if len(clients) > sweepThreshold {
				for key, win := range clients {
					if now.After(win.resetAt) {
						delete(clients, key)
					}
				}
			}

			win, exists := clients[ip]
			switch {
			case !exists:
				win = &window{count: 1, resetAt: now.Add(period)}
				clients[ip] = win
			case now.After(win.resetAt):
				win.count = 1
				win.resetAt = now.Add(period)
			case win.count >= rpm:
				retryAfter := max(int(win.resetAt.Sub(now).Seconds()), 1)
				mtx.Unlock()

				logger.Warn("HTTP: Превышен лимит запросов",
					zap.String("client_ip", ip),
					zap.String("request_id", GetRequestID(r.Context())))

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error":       "rate_limit_exceeded",
					"message":     "Слишком много запросов. Попробуйте позже.",
					"retry_after": retryAfter,
					"request_id":  GetRequestID(r.Context()),
				})
				return
			default:
				win.count++
			}

			remaining := max(rpm-win.count, 0)
			resetUnix := win.resetAt.Unix()
			mtx.Unlock()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rpm))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetUnix, 10))

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Auth сопоставляет Bearer-токен пользователю по таблице из конфигурации
func Auth(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			userID := tokens[token]
			if !ok || userID == "" {
				logger.Warn("HTTP: Запрос без действительного токена",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.String("client_ip", r.RemoteAddr))

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", "Bearer")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"error":      "unauthorized",
					"message":    "Требуется действительный Bearer-токен",
					"request_id": GetRequestID(r.Context()),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserKey, userID)
}

func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserKey).(string)
	return userID, ok && userID != ""
}
