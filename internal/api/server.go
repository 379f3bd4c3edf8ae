package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"pytia/internal/chat"
	"pytia/internal/logger"
	"pytia/internal/router"
)

// ChatFactory builds a fresh session for each POST /v1/sessions.
type ChatFactory func() *chat.Session

// Server exposes the question router and chat sessions over HTTP. The model
// backend handles one request at a time, so mu serializes every call that
// reaches it.
type Server struct {
	store   *SessionStore
	answers *router.Engine
	chats   ChatFactory
	mu      sync.Mutex
	log     logger.Logger
	clock   func() time.Time
}

func NewServer(store *SessionStore, answers *router.Engine, chats ChatFactory, log logger.Logger) *Server {
	if store == nil {
		store = NewSessionStore()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		store:   store,
		answers: answers,
		chats:   chats,
		log:     log,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	// Question answering
	e.POST("/v1/answers", s.handleAnswers)

	// Stateless chat turn
	e.POST("/v1/chat", s.handleChat)

	// Chat sessions
	e.POST("/v1/sessions", s.handleCreateSession)
	e.GET("/v1/sessions/:id", s.handleGetSession)
	e.DELETE("/v1/sessions/:id", s.handleDeleteSession)
	e.POST("/v1/sessions/:id/messages", s.handleSessionMessage)

	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleAnswers(c *echo.Context) error {
	if s.answers == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "answer engine not configured", "", "")
	}

	req, err := decodeJSON[AnswerRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Questions) == 0 {
		return writeBadRequest(c, "questions is required and must not be empty")
	}

	s.mu.Lock()
	results := s.answers.AnswerAll(c.Request().Context(), req.Questions)
	s.mu.Unlock()

	items := make([]AnswerItem, 0, len(results))
	for _, qa := range results {
		items = append(items, AnswerItem{Question: qa.Question, Answer: qa.Answer})
	}
	s.log.Info("answered batch", "questions", len(req.Questions), "answered", len(items))

	return c.JSON(http.StatusOK, AnswerResponse{
		ID:        "batch_" + uuid.NewString(),
		Object:    "answer.batch",
		CreatedAt: s.clock().Unix(),
		Answers:   items,
	})
}

func (s *Server) handleChat(c *echo.Context) error {
	if s.chats == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "chat engine not configured", "", "")
	}

	req, err := decodeJSON[ChatRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Message == "" {
		return writeBadRequest(c, "message is required")
	}

	sess := s.chats()
	turns := make([]chat.Turn, 0, len(req.History))
	for _, t := range req.History {
		turns = append(turns, chat.Turn{Speaker: t.Speaker, Text: t.Text})
	}
	sess.Seed(turns)

	s.mu.Lock()
	reply, err := sess.Reply(c.Request().Context(), req.Message)
	s.mu.Unlock()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	return c.JSON(http.StatusOK, ChatResponse{
		ID:        "chat_" + uuid.NewString(),
		Object:    "chat.turn",
		CreatedAt: s.clock().Unix(),
		Reply:     reply,
		History:   historyDTO(sess),
	})
}

func (s *Server) handleCreateSession(c *echo.Context) error {
	if s.chats == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "chat engine not configured", "", "")
	}

	id, rec := s.store.Create(s.chats(), s.clock())
	s.log.Info("session created", "session", id)

	return c.JSON(http.StatusOK, SessionResponse{
		ID:        id,
		Object:    "chat.session",
		CreatedAt: rec.CreatedAt,
		History:   []ChatTurn{},
	})
}

func (s *Server) handleGetSession(c *echo.Context) error {
	id := c.Param("id")
	rec, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "no session with id "+id)
	}
	return c.JSON(http.StatusOK, SessionResponse{
		ID:        id,
		Object:    "chat.session",
		CreatedAt: rec.CreatedAt,
		History:   historyDTO(rec.Session),
	})
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "no session with id "+id)
	}
	return c.JSON(http.StatusOK, DeleteSessionResponse{
		ID:      id,
		Object:  "chat.session",
		Deleted: true,
	})
}

func (s *Server) handleSessionMessage(c *echo.Context) error {
	id := c.Param("id")
	rec, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "no session with id "+id)
	}

	req, err := decodeJSON[MessageRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Message == "" {
		return writeBadRequest(c, "message is required")
	}

	s.mu.Lock()
	reply, err := rec.Session.Reply(c.Request().Context(), req.Message)
	s.mu.Unlock()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	return c.JSON(http.StatusOK, MessageResponse{
		ID:        "msg_" + uuid.NewString(),
		Object:    "chat.message",
		SessionID: id,
		CreatedAt: s.clock().Unix(),
		Reply:     reply,
		History:   historyDTO(rec.Session),
	})
}

func historyDTO(sess *chat.Session) []ChatTurn {
	turns := sess.History()
	out := make([]ChatTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, ChatTurn{Speaker: t.Speaker, Text: t.Text})
	}
	return out
}
