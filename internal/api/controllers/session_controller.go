package apicontrollers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/services"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	gfmext "github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// Sessions is the part of the session service the HTTP API drives.
type Sessions interface {
	Run(ctx context.Context, threadID, query string) (*services.SessionResult, error)
	Thread(ctx context.Context, threadID string) (*entities.Thread, error)
	ListThreads(ctx context.Context) ([]entities.ThreadSummary, error)
	DeleteThread(ctx context.Context, threadID string) error
	Screenshots(since time.Time) ([]entities.ScreenshotRecord, error)
}

type SessionController struct {
	logger   *zap.Logger
	sessions Sessions
	markdown goldmark.Markdown
}

func NewSessionController(logger *zap.Logger, sessions Sessions) *SessionController {
	return &SessionController{
		logger:   logger,
		sessions: sessions,
		markdown: goldmark.New(goldmark.WithExtensions(gfmext.GFM)),
	}
}

// RegisterRoutes registers all session-related routes with Echo
func (c *SessionController) RegisterRoutes(e *echo.Group) {
	e.POST("/sessions", c.RunSession)
	e.GET("/threads", c.ListThreads)
	e.GET("/threads/:id", c.GetThread)
	e.DELETE("/threads/:id", c.DeleteThread)
	e.GET("/screenshots", c.ListScreenshots)
}

type RunSessionRequest struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
}

type RunSessionResponse struct {
	*services.SessionResult
	AnswerHTML string `json:"answer_html"`
}

// RunSession runs one query to completion and returns the final answer.
func (c *SessionController) RunSession(ctx echo.Context) error {
	var input RunSessionRequest
	if err := ctx.Bind(&input); err != nil {
		return c.handleError(ctx, "Invalid request body", http.StatusBadRequest)
	}

	result, err := c.sessions.Run(ctx.Request().Context(), input.ThreadID, input.Query)
	if err != nil {
		return c.handleError(ctx, err.Error(), statusFor(err))
	}

	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(result.Answer), &buf); err != nil {
		c.logger.Warn("Failed to render answer", zap.Error(err))
	}

	return ctx.JSON(http.StatusOK, RunSessionResponse{SessionResult: result, AnswerHTML: buf.String()})
}

func (c *SessionController) ListThreads(ctx echo.Context) error {
	threads, err := c.sessions.ListThreads(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err.Error(), statusFor(err))
	}
	return ctx.JSON(http.StatusOK, threads)
}

func (c *SessionController) GetThread(ctx echo.Context) error {
	thread, err := c.sessions.Thread(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.handleError(ctx, err.Error(), statusFor(err))
	}
	return ctx.JSON(http.StatusOK, thread)
}

func (c *SessionController) DeleteThread(ctx echo.Context) error {
	if err := c.sessions.DeleteThread(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.handleError(ctx, err.Error(), statusFor(err))
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListScreenshots lists screenshots written after the RFC 3339 "since"
// parameter, or all of them when it is absent.
func (c *SessionController) ListScreenshots(ctx echo.Context) error {
	var since time.Time
	if raw := ctx.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.handleError(ctx, "Invalid since parameter", http.StatusBadRequest)
		}
		since = parsed
	}

	records, err := c.sessions.Screenshots(since)
	if err != nil {
		return c.handleError(ctx, err.Error(), statusFor(err))
	}
	return ctx.JSON(http.StatusOK, records)
}

func statusFor(err error) int {
	var (
		validation *errs.ValidationError
		config     *errs.ConfigError
		notFound   *errs.NotFoundError
		model      *errs.ModelError
		canceled   *errs.CanceledError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &config):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &model):
		return http.StatusBadGateway
	case errors.As(err, &canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleError handles errors and returns them in a consistent format
func (c *SessionController) handleError(ctx echo.Context, message string, statusCode int) error {
	c.logger.Error("Error occurred", zap.String("error", message), zap.Int("status", statusCode))
	return ctx.JSON(statusCode, map[string]any{
		"error": message,
	})
}
