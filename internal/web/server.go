// Package web serves the planning operations as a JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lucasnoah/sprintfactory/internal/knowledge"
	"github.com/lucasnoah/sprintfactory/internal/metrics"
	"github.com/lucasnoah/sprintfactory/internal/orchestrator"
	"github.com/lucasnoah/sprintfactory/internal/session"
)

// maxUploadBytes caps multipart bodies.
const maxUploadBytes = 32 << 20

// Server is the HTTP API server.
type Server struct {
	orch   *orchestrator.Orchestrator
	echo   *echo.Echo
	logger *log.Logger
	poll   time.Duration // event stream polling interval
}

// NewServer builds the router. A nil logger discards request errors.
func NewServer(orch *orchestrator.Orchestrator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{orch: orch, echo: echo.New(), logger: logger, poll: time.Second}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", maxUploadBytes>>20)))
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/context", s.handleContext)
	api.GET("/events", s.handleEvents)
	api.GET("/analytics", s.handleAnalytics)
	api.POST("/ingest/resumes", s.handleIngestResumes)
	api.POST("/ingest/backlog", s.handleIngestBacklog)
	api.POST("/reset", s.handleReset)

	sessions := api.Group("/sessions")
	sessions.GET("", s.handleListSessions)
	sessions.POST("", s.handleCreateSession)

	one := sessions.Group("/:id", validateSessionID)
	one.GET("", s.handleGetSession)
	one.DELETE("", s.handleDeleteSession)
	one.POST("/interview/start", s.handleStartInterview)
	one.POST("/interview/answer", s.handleAnswer)
	one.POST("/plan", s.handleGeneratePlan)
	one.GET("/plan", s.handleGetPlan)
	one.POST("/plan/corrections", s.handleCorrect)
	one.GET("/events", s.handleSessionEvents)
	one.GET("/events/stream", s.handleEventStream)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError renders every failure as {"error": msg}, mapping domain
// sentinels to status codes.
func (s *Server) handleError(err error, c echo.Context) {
	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]interface{}{"error": msg})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidID),
		errors.Is(err, orchestrator.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNotReady),
		errors.Is(err, orchestrator.ErrNoPlan),
		errors.Is(err, knowledge.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func validateSessionID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := session.ValidateID(c.Param("id")); err != nil {
			return err
		}
		return next(c)
	}
}
