// Package api exposes the concierge over HTTP: session management, chat
// steps, schedule uploads, plan and checkpoint inspection, and an SSE
// progress stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/models"
	"github.com/example/conference-concierge/internal/orchestrator"
	"github.com/example/conference-concierge/internal/rag"
	"github.com/example/conference-concierge/internal/session"
)

type Server struct {
	echo   *echo.Echo
	orch   *orchestrator.Orchestrator
	store  *session.Store
	index  *rag.Index
	logger *zap.Logger
	addr   string
}

func NewServer(orch *orchestrator.Orchestrator, store *session.Store, index *rag.Index, logger *zap.Logger, addr string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{echo: e, orch: orch, store: store, index: index, logger: logger, addr: addr}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	s.echo.POST("/sessions", s.handleCreateSession)
	s.echo.GET("/sessions", s.handleListSessions)
	s.echo.DELETE("/sessions/:id", s.handleDeleteSession)

	s.echo.POST("/sessions/:id/chat", s.handleChat)
	s.echo.POST("/sessions/:id/schedule", s.handleUploadSchedule)
	s.echo.GET("/sessions/:id/plan", s.handlePlan)
	s.echo.GET("/sessions/:id/checkpoints", s.handleCheckpoints)
	s.echo.GET("/sessions/:id/state", s.handleState)
	s.echo.POST("/sessions/:id/resume", s.handleResume)
	s.echo.GET("/sessions/:id/events", s.handleEvents)
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil && c.Request().ContentLength > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	meta, err := s.store.Create(req.Title)
	if err != nil {
		s.logger.Error("creating session failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create session")
	}
	return c.JSON(http.StatusCreated, meta)
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.store.List()
	if err != nil {
		s.logger.Error("listing sessions failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list sessions")
	}
	if sessions == nil {
		sessions = []*session.Meta{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if !s.store.Exists(id) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err := s.store.Delete(id); err != nil {
		s.logger.Error("deleting session failed", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete session")
	}
	s.orch.Forget(id)
	return c.NoContent(http.StatusNoContent)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(c echo.Context) error {
	id := c.Param("id")
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := s.orch.Step(c.Request().Context(), id, req.Message)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownConversation) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		s.logger.Error("step failed", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "step failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

type uploadResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleUploadSchedule(c echo.Context) error {
	id := c.Param("id")
	if !s.store.Exists(id) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}
	defer src.Close()

	path, err := s.store.SaveUploadedFile(id, fh.Filename, src)
	if err != nil {
		s.logger.Error("saving upload failed", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not store upload")
	}
	msg, err := s.index.IndexFile(c.Request().Context(), id, path)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("could not index schedule: %v", err))
	}
	return c.JSON(http.StatusOK, uploadResponse{Message: msg})
}

func (s *Server) handlePlan(c echo.Context) error {
	id := c.Param("id")
	state, err := s.orch.State(id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownConversation) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load state")
	}
	plan := state.Plan
	if plan == nil {
		plan = models.Plan{}
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) handleCheckpoints(c echo.Context) error {
	id := c.Param("id")
	cps, err := s.orch.Checkpoints(id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownConversation) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load checkpoints")
	}
	type checkpointSummary struct {
		StepIndex int            `json:"step_index"`
		Stage     string         `json:"stage"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		Timestamp time.Time      `json:"timestamp"`
	}
	out := make([]checkpointSummary, 0, len(cps))
	for _, cp := range cps {
		out = append(out, checkpointSummary{
			StepIndex: cp.StepIndex,
			Stage:     cp.Stage,
			Metadata:  cp.Metadata,
			Timestamp: cp.Timestamp,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleState(c echo.Context) error {
	id := c.Param("id")
	stepParam := c.QueryParam("step")
	if stepParam == "" {
		state, err := s.orch.State(id)
		if err != nil {
			if errors.Is(err, orchestrator.ErrUnknownConversation) {
				return echo.NewHTTPError(http.StatusNotFound, "session not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "could not load state")
		}
		return c.JSON(http.StatusOK, state)
	}
	var step int
	if _, err := fmt.Sscanf(stepParam, "%d", &step); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "step must be an integer")
	}
	state, err := s.orch.StateAt(id, step)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownConversation) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, state)
}

type resumeRequest struct {
	StepIndex int `json:"step_index"`
}

func (s *Server) handleResume(c echo.Context) error {
	id := c.Param("id")
	var req resumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	state, err := s.orch.Resume(id, req.StepIndex)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownConversation) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, state)
}

// handleEvents streams orchestration progress as server-sent events.
func (s *Server) handleEvents(c echo.Context) error {
	id := c.Param("id")
	if !s.store.Exists(id) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ch, unsubscribe := s.orch.Hub.Subscribe(id)
	defer unsubscribe()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			w.Flush()
		}
	}
}
