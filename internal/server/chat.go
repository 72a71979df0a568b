package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sense-app/sense-ai-chat/internal/agent/core"
	"github.com/sense-app/sense-ai-chat/internal/store"
	"github.com/sense-app/sense-ai-chat/provider"
	"github.com/sense-app/sense-ai-chat/repository"
)

// ChatHandler serves the conversational shopping endpoint: one POST
// runs a full agent turn and streams text, annotations and data events
// back over SSE.
type ChatHandler struct {
	Store      *store.Store
	Events     repository.EventRepository
	Orch       *core.Orchestrator
	LLM        provider.Provider
	TitleModel string
	// Models maps the request's model-selection string to a concrete
	// model id; an empty selection keeps the orchestrator's default.
	Models map[string]string
	Logger *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.chat)
	g.GET("", h.list)
	g.GET("/:id/messages", h.messages)
	g.GET("/:id/events", h.events)
	g.DELETE("", h.remove)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat id required")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages required")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		return echo.NewHTTPError(http.StatusBadRequest, "last message must be from the user")
	}

	orch := h.Orch
	if req.Model != "" {
		model, ok := h.Models[req.Model]
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown model %q", req.Model))
		}
		if model != orch.Model {
			clone := *h.Orch
			clone.Model = model
			orch = &clone
		}
	}

	ctx := c.Request().Context()
	userID, _ := c.Get("user_id").(string)

	title := ""
	existing, err := h.Store.GetChat(ctx, req.ID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return echo.NewHTTPError(http.StatusNotFound, "chat not found")
		}
		title = existing.Title
	case errors.Is(err, store.ErrNotFound):
		title = h.generateTitle(c, last.Content)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.Store.UpsertChat(ctx, req.ID, userID, title); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.Store.AppendMessage(ctx, req.ID, last.Role, last.Content); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	turnID := uuid.NewString()
	stream := &sseStream{c: c, flusher: flusher, events: h.Events, chatID: req.ID, turnID: turnID, logger: h.Logger}

	history := make([]provider.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	bank := core.NewKnowledgeBank(history)

	final, err := orch.Run(ctx, bank, stream)
	if err != nil {
		// The orchestrator already streamed the failure message; the
		// headers are committed, so the turn ends without a saved reply.
		h.Logger.Printf("turn %s failed for chat %s: %v", turnID, req.ID, err)
		stream.done()
		return nil
	}

	if _, err := h.Store.AppendMessage(ctx, req.ID, "assistant", final); err != nil {
		h.Logger.Printf("persisting assistant reply for chat %s: %v", req.ID, err)
	}
	stream.done()
	return nil
}

// generateTitle asks the small model for a chat title on the first
// turn, falling back to a truncated user message.
func (h *ChatHandler) generateTitle(c echo.Context, userMessage string) string {
	prompt := fmt.Sprintf("Write a title of at most 6 words for a shopping conversation starting with: %q. Answer with the title only.", userMessage)
	title, err := h.LLM.Chat(c.Request().Context(), h.TitleModel, []provider.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil || strings.TrimSpace(title) == "" {
		h.Logger.Printf("title generation failed: %v", err)
		if len(userMessage) > 60 {
			return userMessage[:60]
		}
		return userMessage
	}
	return strings.Trim(strings.TrimSpace(title), `"`)
}

func (h *ChatHandler) list(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	chats, err := h.Store.ListChats(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, ch := range chats {
		out = append(out, ChatSummary{ID: ch.ID, Title: ch.Title, CreatedAt: ch.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) messages(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	chatID := c.Param("id")

	if err := h.authorize(c, chatID, userID); err != nil {
		return err
	}
	msgs, err := h.Store.ListMessages(c.Request().Context(), chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

// events replays the cached stream events of the chat's recent turns.
func (h *ChatHandler) events(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	chatID := c.Param("id")

	if err := h.authorize(c, chatID, userID); err != nil {
		return err
	}
	if h.Events == nil {
		return c.JSON(http.StatusOK, []repository.TurnEvent{})
	}
	events, err := h.Events.ListTurnEvents(c.Request().Context(), chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (h *ChatHandler) remove(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	chatID := c.QueryParam("id")
	if strings.TrimSpace(chatID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat id required")
	}
	if err := h.Store.DeleteChat(c.Request().Context(), chatID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "chat not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *ChatHandler) authorize(c echo.Context, chatID, userID string) error {
	chat, err := h.Store.GetChat(c.Request().Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "chat not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if chat.UserID != userID {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	return nil
}

// sseStream adapts the agent's output channel to SSE, mirroring each
// event into the replay cache.
type sseStream struct {
	c       echo.Context
	flusher http.Flusher
	events  repository.EventRepository
	chatID  string
	turnID  string
	logger  *log.Logger
}

func (s *sseStream) Text(chunk string) error {
	return s.send("text", map[string]string{"text": chunk})
}

func (s *sseStream) Annotate(a core.Annotation) error {
	return s.send("annotation", a)
}

func (s *sseStream) Data(v interface{}) error {
	return s.send("data", v)
}

func (s *sseStream) done() {
	_ = s.send("done", map[string]string{"status": "done", "turnId": s.turnID})
}

func (s *sseStream) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Response(), "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()

	if s.events != nil {
		cacheErr := s.events.AppendTurnEvent(s.c.Request().Context(), s.chatID, repository.TurnEvent{
			TurnID:  s.turnID,
			Type:    event,
			Payload: data,
			At:      time.Now().UTC(),
		})
		if cacheErr != nil {
			// Replay cache is best-effort; the live stream already
			// carried the event.
			s.logger.Printf("event cache append failed for chat %s: %v", s.chatID, cacheErr)
		}
	}
	return nil
}
