package apicontrollers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Run(ctx context.Context, threadID, query string) (*services.SessionResult, error) {
	args := m.Called(ctx, threadID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionResult), args.Error(1)
}

func (m *MockSessions) Thread(ctx context.Context, threadID string) (*entities.Thread, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Thread), args.Error(1)
}

func (m *MockSessions) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).([]entities.ThreadSummary), args.Error(1)
}

func (m *MockSessions) DeleteThread(ctx context.Context, threadID string) error {
	return m.Called(ctx, threadID).Error(0)
}

func (m *MockSessions) Screenshots(since time.Time) ([]entities.ScreenshotRecord, error) {
	args := m.Called(since)
	return args.Get(0).([]entities.ScreenshotRecord), args.Error(1)
}

func newTestEcho(sessions Sessions) *echo.Echo {
	e := echo.New()
	NewSessionController(zap.NewNop(), sessions).RegisterRoutes(e.Group("/api"))
	return e
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRunSession(t *testing.T) {
	sessions := new(MockSessions)
	sessions.On("Run", mock.Anything, "", "find the weather").Return(&services.SessionResult{
		ThreadID: "1700000000",
		Answer:   "It is **sunny**.",
	}, nil)

	rec := serve(newTestEcho(sessions), http.MethodPost, "/api/sessions", `{"query": "find the weather"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1700000000", body["thread_id"])
	assert.Equal(t, "It is **sunny**.", body["answer"])
	assert.Contains(t, body["answer_html"], "<strong>sunny</strong>")
	sessions.AssertExpectations(t)
}

func TestRunSession_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", errs.ValidationErrorf("query is required"), http.StatusBadRequest},
		{"model", errs.NewModelError("openai", "gpt-4.1-mini", assert.AnError), http.StatusBadGateway},
		{"config", errs.ConfigErrorf("unsupported provider: %q", "x"), http.StatusBadRequest},
		{"canceled", errs.CanceledErrorf("canceled"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(MockSessions)
			sessions.On("Run", mock.Anything, "t1", "q").Return(nil, tt.err)

			rec := serve(newTestEcho(sessions), http.MethodPost, "/api/sessions", `{"thread_id": "t1", "query": "q"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.err.Error()[:5])
		})
	}
}

func TestGetThread(t *testing.T) {
	sessions := new(MockSessions)
	thread := entities.NewThread("42")
	sessions.On("Thread", mock.Anything, "42").Return(thread, nil)
	sessions.On("Thread", mock.Anything, "missing").Return(nil, errs.NotFoundErrorf("thread not found: missing"))
	e := newTestEcho(sessions)

	rec := serve(e, http.MethodGet, "/api/threads/42", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"42"`)

	rec = serve(e, http.MethodGet, "/api/threads/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndDeleteThreads(t *testing.T) {
	sessions := new(MockSessions)
	sessions.On("ListThreads", mock.Anything).Return([]entities.ThreadSummary{{ID: "1", MessageCount: 3}}, nil)
	sessions.On("DeleteThread", mock.Anything, "1").Return(nil)
	e := newTestEcho(sessions)

	rec := serve(e, http.MethodGet, "/api/threads", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message_count":3`)

	rec = serve(e, http.MethodDelete, "/api/threads/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	sessions.AssertExpectations(t)
}

func TestListScreenshots(t *testing.T) {
	since := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := new(MockSessions)
	sessions.On("Screenshots", since).Return([]entities.ScreenshotRecord{{Name: "1740830400.png"}}, nil)
	e := newTestEcho(sessions)

	rec := serve(e, http.MethodGet, "/api/screenshots?since=2025-03-01T12:00:00Z", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1740830400.png")

	rec = serve(e, http.MethodGet, "/api/screenshots?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	sessions.AssertExpectations(t)
}
