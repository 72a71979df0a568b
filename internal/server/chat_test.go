package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/sense-app/sense-ai-chat/internal/agent/core"
	"github.com/sense-app/sense-ai-chat/internal/store"
	"github.com/sense-app/sense-ai-chat/provider"
)

var testSecret = []byte("test-secret")

type stubLLM struct {
	chatReply  string
	completion provider.Completion
	gotModel   string
}

func (s *stubLLM) Chat(context.Context, string, []provider.Message) (string, error) {
	return s.chatReply, nil
}

func (s *stubLLM) ChatWithTools(_ context.Context, model string, _ []provider.Message, _ []provider.ToolDef) (provider.Completion, error) {
	s.gotModel = model
	return s.completion, nil
}

func (s *stubLLM) GenerateObject(context.Context, string, string, int, interface{}) error {
	return nil
}

func newTestHandler(t *testing.T, llm provider.Provider) (*ChatHandler, sqlmock.Sqlmock, *echo.Echo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &ChatHandler{
		Store: &store.Store{DB: db},
		Orch: &core.Orchestrator{
			Provider: llm,
			Model:    "large",
			Tools:    core.NewRegistry(),
			MaxSteps: 5,
			Logger:   log.New(io.Discard, "", 0),
		},
		LLM:        llm,
		TitleModel: "small",
		Models:     map[string]string{"large": "large", "reasoning": "reasoning-xl"},
		Logger:     log.New(io.Discard, "", 0),
	}

	e := echo.New()
	h.Register(e.Group("/api/chat"), testSecret)
	return h, mock, e
}

func authedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	token, err := SignJWT("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req
}

func TestChatRequiresAuth(t *testing.T) {
	_, _, e := newTestHandler(t, &stubLLM{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestChatStreamsTurn(t *testing.T) {
	llm := &stubLLM{
		chatReply:  "Shoe Shopping",
		completion: provider.Completion{Content: "Here are your shoes."},
	}
	_, mock, e := newTestHandler(t, llm)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM chats WHERE id=$1`)).
		WithArgs("chat-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}))
	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO chats (id, user_id, title) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`)).
		WithArgs("chat-1", "user-1", "Shoe Shopping").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages (chat_id, role, content) VALUES ($1,$2,$3) RETURNING id`)).
		WithArgs("chat-1", "user", "running shoes under $100").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("msg-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages (chat_id, role, content) VALUES ($1,$2,$3) RETURNING id`)).
		WithArgs("chat-1", "assistant", "Here are your shoes.").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("msg-2"))

	req := authedRequest(t, http.MethodPost, "/api/chat",
		`{"id":"chat-1","messages":[{"role":"user","content":"running shoes under $100"}]}`)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: text") {
		t.Errorf("no text events in stream:\n%s", body)
	}
	if !strings.Contains(body, "Here") {
		t.Errorf("final answer missing from stream:\n%s", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("no done event in stream:\n%s", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatRoutesRequestedModel(t *testing.T) {
	llm := &stubLLM{
		chatReply:  "Shoe Shopping",
		completion: provider.Completion{Content: "done"},
	}
	_, mock, e := newTestHandler(t, llm)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM chats WHERE id=$1`)).
		WithArgs("chat-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}))
	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO chats (id, user_id, title) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("msg-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("msg-2"))

	req := authedRequest(t, http.MethodPost, "/api/chat",
		`{"id":"chat-1","model":"reasoning","messages":[{"role":"user","content":"compare trail shoes"}]}`)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if llm.gotModel != "reasoning-xl" {
		t.Errorf("turn ran on model %q, want %q", llm.gotModel, "reasoning-xl")
	}
}

func TestChatRejectsUnknownModel(t *testing.T) {
	_, _, e := newTestHandler(t, &stubLLM{})

	req := authedRequest(t, http.MethodPost, "/api/chat",
		`{"id":"chat-1","model":"turbo","messages":[{"role":"user","content":"hi"}]}`)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown model", rec.Code)
	}
}

func TestChatRejectsNonUserLastMessage(t *testing.T) {
	_, _, e := newTestHandler(t, &stubLLM{})

	req := authedRequest(t, http.MethodPost, "/api/chat",
		`{"id":"chat-1","messages":[{"role":"assistant","content":"hello"}]}`)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteChatOwnerOnly(t *testing.T) {
	_, mock, e := newTestHandler(t, &stubLLM{})

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chats WHERE id=$1 AND user_id=$2`)).
		WithArgs("chat-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := authedRequest(t, http.MethodDelete, "/api/chat?id=chat-1", "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for non-owned chat", rec.Code)
	}
}

func TestListChats(t *testing.T) {
	_, mock, e := newTestHandler(t, &stubLLM{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM chats WHERE user_id=$1 ORDER BY created_at DESC`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("chat-1", "user-1", "Shoe Shopping", time.Now()))

	req := authedRequest(t, http.MethodGet, "/api/chat", "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Shoe Shopping") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
