package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/chadiek/interview-coach/internal/interview"
	"github.com/chadiek/interview-coach/internal/tts"
)

// SessionStore is the persistence the HTTP surface needs.
type SessionStore interface {
	interview.Store
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]*interview.Session, error)
}

// LiveConfig tunes live sessions.
type LiveConfig struct {
	Interview      interview.Config
	ICEServers     []webrtc.ICEServer
	AcquireTimeout time.Duration
}

// Deps bundles the collaborators shared by every request.
type Deps struct {
	Store       SessionStore
	Transcriber interview.Transcriber
	Generator   interview.Generator
	// Voice builds the synthesizer for one connection's audio sink. Nil
	// sessions run silent.
	Voice   func(sink tts.Sink) interview.Synthesizer
	Archive interview.Archive
	Logger  *zap.Logger
	Live    LiveConfig
}

// Server bundles the HTTP router and dependencies.
type Server struct {
	Router *echo.Echo
	deps   Deps
	log    *zap.Logger
}

// New constructs the HTTP server with routes.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{Router: newRouter(log), deps: deps, log: log}

	e := s.Router
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/sessions", s.createSession)
	e.GET("/sessions/:id", s.getSession)
	e.GET("/users/:id/sessions", s.listSessions)
	e.GET("/sessions/:id/live", s.live)
	return s
}

type createSessionRequest struct {
	RequesterID    string   `json:"requester_id" validate:"required"`
	PracticeOption string   `json:"practice_option" validate:"required"`
	Topic          string   `json:"topic" validate:"required,max=200"`
	Interviewer    string   `json:"interviewer" validate:"required"`
	Difficulty     string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags           []string `json:"tags" validate:"max=10,dive,max=40"`
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id, err := s.deps.Store.Create(ctx, &interview.Session{
		RequesterID:    req.RequesterID,
		PracticeOption: req.PracticeOption,
		Topic:          req.Topic,
		Interviewer:    req.Interviewer,
		Difficulty:     req.Difficulty,
		Tags:           req.Tags,
	})
	if err != nil {
		s.log.Error("create session failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create session")
	}
	sess, err := s.deps.Store.Get(ctx, id)
	if err != nil || sess == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load session")
	}
	s.log.Info("session created", zap.String("session_id", id), zap.String("requester_id", req.RequesterID))
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.deps.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.log.Error("get session failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load session")
	}
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) listSessions(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	list, err := s.deps.Store.ListByRequester(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		s.log.Error("list sessions failed", zap.String("requester_id", c.Param("id")), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list sessions")
	}
	if list == nil {
		list = []*interview.Session{}
	}
	return c.JSON(http.StatusOK, list)
}
