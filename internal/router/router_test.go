package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/handler"
	"github.com/cloudtrack/certprep/internal/middleware"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/repository"
	"github.com/cloudtrack/certprep/internal/scheduler"
	"github.com/cloudtrack/certprep/internal/service"
	"github.com/cloudtrack/certprep/internal/validator"
	ws "github.com/cloudtrack/certprep/internal/websocket"
)

const routerCatalog = `
[[exam]]
id = "mini"
title = "Mini"
duration_minutes = 30
question_count = 2
passing_score = 600

[[question]]
id = "q0"
prompt = "first"
options = ["yes", "no"]
correct_option = 0
difficulty = "easy"
category = "compute"
explanation = "Because."

[[question]]
id = "q1"
prompt = "second"
options = ["yes", "no", "maybe"]
correct_option = 2
difficulty = "hard"
category = "storage"
`

type stubAuth struct {
	service.AuthProvider
}

func (stubAuth) CurrentUser(_ context.Context, token string) (*service.Claims, error) {
	switch token {
	case "learner":
		return &service.Claims{UserID: "u-learner", Email: "l@example.com", Role: model.RoleLearner}, nil
	case "admin":
		return &service.Claims{UserID: "u-admin", Email: "a@example.com", Role: model.RoleAdmin}, nil
	}
	return nil, service.ErrInvalidToken
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStore) Get(_ context.Context, userID string) (*model.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[userID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	var rec model.ActiveSession
	err := json.Unmarshal(raw, &rec)
	return &rec, err
}

func (m *memoryStore) Save(_ context.Context, rec *model.ActiveSession) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[rec.UserID] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.data, userID)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) CountActive(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, raw := range m.data {
		var rec model.ActiveSession
		if err := json.Unmarshal(raw, &rec); err == nil && rec.Running(time.Now()) {
			n++
		}
	}
	return n, nil
}

type staticUsers struct{}

func (staticUsers) CountUsersByRole(context.Context) (map[model.Role]int, error) {
	return map[model.Role]int{model.RoleLearner: 1, model.RoleAdmin: 1}, nil
}

type nopQueue struct{}

func (nopQueue) Push(context.Context, ...[]byte) error { return nil }

type testServer struct {
	engine *gin.Engine
	ticks  *scheduler.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()

	cat, err := catalog.Parse(routerCatalog)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	log := zerolog.Nop()
	cfg := &config.Config{GinMode: gin.TestMode}
	auth := stubAuth{}
	ticks := scheduler.NewManual()

	catalogSvc := service.NewCatalogService(cat)
	source := service.NewCatalogQuestionSource(cat)
	store := &memoryStore{data: make(map[string][]byte)}
	events := service.NewLocalSessionEvents()
	sessions := service.NewExamSessionService(catalogSvc, source, store, events, log)
	questions := service.NewQuestionService(source, nopQueue{})
	dashboard := service.NewDashboardService(staticUsers{}, store, questions, catalogSvc, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handlers := &Handlers{
		Auth:     handler.NewAuthHandler(auth, log),
		Exam:     handler.NewExamHandler(catalogSvc),
		Session:  handler.NewSessionHandler(sessions, log),
		Question: handler.NewQuestionHandler(questions, log),
		WS:       handler.NewWSHandler(sessions, ticks, log, nil),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"catalog": handler.PingFunc(func(context.Context) error { return nil }),
		}, log),
		Dashboard: handler.NewDashboardHandler(dashboard, log),
		Monitor:   handler.NewMonitorHandler(events, dashboard, log),
	}

	return &testServer{
		engine: SetupRouter(auth, middleware.NewRateLimiter(ctx, 100, time.Minute), handlers, cfg),
		ticks:  ticks,
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

type sessionData struct {
	Session model.SessionView `json:"session"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !strings.Contains(string(env.Data), `"catalog":"up"`) {
		t.Fatalf("data = %s, want catalog up", env.Data)
	}
}

func TestExamsRequireAuth(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(t, http.MethodGet, "/api/v1/exams", "", nil)
	if code != http.StatusUnauthorized || errCode(env) != "TOKEN_REQUIRED" {
		t.Fatalf("status = %d code = %q, want 401 TOKEN_REQUIRED", code, errCode(env))
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/exams", "learner", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !strings.Contains(string(env.Data), `"mini"`) {
		t.Fatalf("data = %s, want mini exam", env.Data)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/exams/nope", "learner", nil)
	if code != http.StatusNotFound || errCode(env) != "EXAM_NOT_FOUND" {
		t.Fatalf("status = %d code = %q, want 404 EXAM_NOT_FOUND", code, errCode(env))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := "learner"

	code, env := s.do(t, http.MethodGet, "/api/v1/session", tok, nil)
	if code != http.StatusNotFound || errCode(env) != "NO_ACTIVE_SESSION" {
		t.Fatalf("before start: status = %d code = %q", code, errCode(env))
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions", tok, nil)
	if code != http.StatusCreated {
		t.Fatalf("start status = %d (%s)", code, errCode(env))
	}
	var started sessionData
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(started.Session.Questions) != 2 || started.Session.Clock != "00:30:00" {
		t.Fatalf("session = %+v", started.Session)
	}
	for _, q := range started.Session.Questions {
		if q.CorrectOption != nil || q.Explanation != "" {
			t.Fatalf("question %s leaks answer key while in progress", q.ID)
		}
	}

	zero, two, nine := 0, 2, 9
	if code, env = s.do(t, http.MethodPut, "/api/v1/session/answers/q0", tok, model.AnswerRequest{OptionIndex: &zero}); code != http.StatusOK {
		t.Fatalf("answer q0 status = %d (%s)", code, errCode(env))
	}
	if code, env = s.do(t, http.MethodPut, "/api/v1/session/answers/q1", tok, model.AnswerRequest{OptionIndex: &two}); code != http.StatusOK {
		t.Fatalf("answer q1 status = %d (%s)", code, errCode(env))
	}
	code, env = s.do(t, http.MethodPut, "/api/v1/session/answers/q1", tok, model.AnswerRequest{OptionIndex: &nine})
	if code != http.StatusBadRequest || errCode(env) != "INVALID_INPUT" {
		t.Fatalf("bad option: status = %d code = %q", code, errCode(env))
	}
	code, env = s.do(t, http.MethodPut, "/api/v1/session/answers/q1", tok, map[string]any{})
	if code != http.StatusBadRequest || errCode(env) != "VALIDATION_ERROR" {
		t.Fatalf("missing option: status = %d code = %q", code, errCode(env))
	}

	if code, env = s.do(t, http.MethodPost, "/api/v1/session/flags/q1", tok, nil); code != http.StatusOK {
		t.Fatalf("flag status = %d (%s)", code, errCode(env))
	}
	if !strings.Contains(string(env.Data), `"flagged":true`) {
		t.Fatalf("flag data = %s", env.Data)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/session/navigate", tok, model.NavigateRequest{Index: &nine})
	if code != http.StatusOK {
		t.Fatalf("navigate status = %d (%s)", code, errCode(env))
	}
	var nav sessionData
	_ = json.Unmarshal(env.Data, &nav)
	if nav.Session.CurrentIndex != 1 {
		t.Fatalf("index = %d, want clamped to 1", nav.Session.CurrentIndex)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/session/score", tok, nil)
	if code != http.StatusConflict || errCode(env) != "INVALID_STATE" {
		t.Fatalf("score before finish: status = %d code = %q", code, errCode(env))
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/session/finish", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("finish status = %d (%s)", code, errCode(env))
	}
	var finished struct {
		Session model.SessionView `json:"session"`
		Score   struct {
			TotalScore int  `json:"total_score"`
			Passed     bool `json:"passed"`
		} `json:"score"`
	}
	if err := json.Unmarshal(env.Data, &finished); err != nil {
		t.Fatalf("decode finish: %v", err)
	}
	if finished.Score.TotalScore != 1000 || !finished.Score.Passed {
		t.Fatalf("score = %+v, want 1000 passed", finished.Score)
	}
	for _, q := range finished.Session.Questions {
		if q.CorrectOption == nil {
			t.Fatalf("question %s hides answer key after finish", q.ID)
		}
	}

	code, env = s.do(t, http.MethodPut, "/api/v1/session/answers/q0", tok, model.AnswerRequest{OptionIndex: &zero})
	if code != http.StatusConflict || errCode(env) != "INVALID_STATE" {
		t.Fatalf("answer after finish: status = %d code = %q", code, errCode(env))
	}

	if code, _ = s.do(t, http.MethodGet, "/api/v1/session/score", tok, nil); code != http.StatusOK {
		t.Fatalf("score status = %d", code)
	}
	if code, _ = s.do(t, http.MethodDelete, "/api/v1/session", tok, nil); code != http.StatusOK {
		t.Fatalf("reset status = %d", code)
	}
	if code, _ = s.do(t, http.MethodGet, "/api/v1/session", tok, nil); code != http.StatusNotFound {
		t.Fatalf("after reset status = %d, want 404", code)
	}
}

func TestStartSessionFilter(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions?difficulty=hard", "learner", nil)
	if code != http.StatusCreated {
		t.Fatalf("start status = %d (%s)", code, errCode(env))
	}
	var started sessionData
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(started.Session.Questions) != 1 || started.Session.Questions[0].ID != "q1" {
		t.Fatalf("questions = %+v, want only q1", started.Session.Questions)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions?category=networking&difficulty=easy", "learner", nil)
	if code != http.StatusCreated {
		t.Fatalf("fallback start status = %d (%s)", code, errCode(env))
	}
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(started.Session.Questions) != 1 || started.Session.Questions[0].ID != "q0" {
		t.Fatalf("questions = %+v, want only q0", started.Session.Questions)
	}

	for _, query := range []string{"difficulty=impossible", "category=Not%20A%20Slug"} {
		code, env = s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions?"+query, "learner", nil)
		if code != http.StatusBadRequest || errCode(env) != "VALIDATION_ERROR" {
			t.Fatalf("%s: status = %d code = %q, want 400 VALIDATION_ERROR", query, code, errCode(env))
		}
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions?difficulty=medium", "learner", nil)
	if code != http.StatusUnprocessableEntity || errCode(env) != "NO_QUESTIONS" {
		t.Fatalf("empty pool: status = %d code = %q, want 422 NO_QUESTIONS", code, errCode(env))
	}
}

func TestDashboardCountsRunningSessions(t *testing.T) {
	s := newTestServer(t)

	activeSessions := func() int {
		t.Helper()
		code, env := s.do(t, http.MethodGet, "/api/v1/admin/dashboard", "admin", nil)
		if code != http.StatusOK {
			t.Fatalf("dashboard status = %d (%s)", code, errCode(env))
		}
		var data struct {
			ActiveSessions int `json:"active_sessions"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode dashboard: %v", err)
		}
		return data.ActiveSessions
	}

	if code, env := s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions", "learner", nil); code != http.StatusCreated {
		t.Fatalf("start status = %d (%s)", code, errCode(env))
	}
	if n := activeSessions(); n != 1 {
		t.Fatalf("active sessions = %d, want 1", n)
	}

	if code, env := s.do(t, http.MethodPost, "/api/v1/session/finish", "learner", nil); code != http.StatusOK {
		t.Fatalf("finish status = %d (%s)", code, errCode(env))
	}
	if n := activeSessions(); n != 0 {
		t.Fatalf("active sessions after finish = %d, want 0", n)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/admin/questions/stats", "learner", nil)
	if code != http.StatusForbidden || errCode(env) != "ADMIN_ACCESS_ONLY" {
		t.Fatalf("learner: status = %d code = %q", code, errCode(env))
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/questions/stats", "admin", nil)
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"total":2`) {
		t.Fatalf("stats: status = %d data = %s", code, env.Data)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/dashboard", "admin", nil)
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"total_users":2`) {
		t.Fatalf("dashboard: status = %d data = %s", code, env.Data)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/questions?per_page=1&page=2", "admin", nil)
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"q1"`) {
		t.Fatalf("list: status = %d data = %s", code, env.Data)
	}

	if code, env = s.do(t, http.MethodGet, "/api/v1/admin/questions?per_page=500", "admin", nil); code != http.StatusBadRequest {
		t.Fatalf("oversized page: status = %d code = %q", code, errCode(env))
	}

	valid := model.ImportQuestionsRequest{Questions: []model.ImportQuestion{{
		ID: "q9", Prompt: "new", Options: []string{"a", "b"}, CorrectOption: 1, Difficulty: "medium", Category: "network",
	}}}
	if code, env = s.do(t, http.MethodPost, "/api/v1/admin/questions/import", "admin", valid); code != http.StatusAccepted {
		t.Fatalf("import status = %d (%s)", code, errCode(env))
	}

	invalid := model.ImportQuestionsRequest{Questions: []model.ImportQuestion{{
		Prompt: "new", Options: []string{"a", "b"}, CorrectOption: 5, Difficulty: "medium", Category: "network",
	}}}
	code, env = s.do(t, http.MethodPost, "/api/v1/admin/questions/import", "admin", invalid)
	if code != http.StatusBadRequest || errCode(env) != "VALIDATION_ERROR" {
		t.Fatalf("invalid import: status = %d code = %q", code, errCode(env))
	}
}

func TestSessionStream(t *testing.T) {
	s := newTestServer(t)
	if code, env := s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions", "learner", nil); code != http.StatusCreated {
		t.Fatalf("start status = %d (%s)", code, errCode(env))
	}

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/session/stream?token=learner"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() map[string]json.RawMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg map[string]json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}
	event := func(msg map[string]json.RawMessage) string {
		var e string
		_ = json.Unmarshal(msg["event"], &e)
		return e
	}

	if got := event(read()); got != string(ws.EventState) {
		t.Fatalf("first event = %q, want state", got)
	}

	// The ticker registers right after the initial snapshot is written.
	deadline := time.Now().Add(5 * time.Second)
	for s.ticks.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.ticks.Fire()
	if got := event(read()); got != string(ws.EventTick) {
		t.Fatalf("event after fire = %q, want tick", got)
	}

	if err := conn.WriteJSON(map[string]string{"action": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if got := event(read()); got != string(ws.EventPong) {
		t.Fatalf("event after ping = %q, want pong", got)
	}

	if err := conn.WriteJSON(map[string]any{"action": "answer", "question_id": "q0", "option_index": 0}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	if got := event(read()); got != string(ws.EventState) {
		t.Fatalf("event after answer = %q, want state", got)
	}

	if err := conn.WriteJSON(map[string]string{"action": "bogus"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	if got := event(read()); got != string(ws.EventError) {
		t.Fatalf("event after bogus = %q, want error", got)
	}

	if err := conn.WriteJSON(map[string]string{"action": "finish"}); err != nil {
		t.Fatalf("write finish: %v", err)
	}
	if got := event(read()); got != string(ws.EventState) {
		t.Fatalf("event after finish = %q, want state", got)
	}
	finished := read()
	if got := event(finished); got != string(ws.EventFinished) {
		t.Fatalf("event = %q, want finished", got)
	}
	if !strings.Contains(string(finished["score"]), `"total_score":500`) {
		t.Fatalf("score = %s, want 500", finished["score"])
	}
	if s.ticks.Active() != 0 {
		t.Fatalf("active schedules = %d, want 0 after finish", s.ticks.Active())
	}
}

func TestSessionStreamWithoutSession(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/session/stream?token=learner"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded without a session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %v, want 404", resp)
	}
}

func TestAdminMonitorStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/admin/monitor", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer admin")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("monitor status = %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	waitFor := func(fragment string) {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("waiting for %s: %v", fragment, err)
			}
			if strings.HasPrefix(line, "data:") && strings.Contains(line, fragment) {
				return
			}
		}
	}

	waitFor(`"type":"snapshot"`)

	if code, env := s.do(t, http.MethodPost, "/api/v1/exams/mini/sessions", "learner", nil); code != http.StatusCreated {
		t.Fatalf("start status = %d (%s)", code, errCode(env))
	}
	waitFor(`"type":"started"`)

	if code, _ := s.do(t, http.MethodPost, "/api/v1/session/finish", "learner", nil); code != http.StatusOK {
		t.Fatalf("finish status = %d", code)
	}
	waitFor(`"type":"finished"`)
}

func TestAdminMonitorRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(t, http.MethodGet, "/api/v1/admin/monitor", "learner", nil)
	if code != http.StatusForbidden || errCode(env) != "ADMIN_ACCESS_ONLY" {
		t.Fatalf("status = %d code = %q", code, errCode(env))
	}
}
