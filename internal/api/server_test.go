package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskmaster/pkg/activity"
	"taskmaster/pkg/task"
	"taskmaster/pkg/user"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type testEnv struct {
	srv      *Server
	tasks    *task.GormStore
	users    *user.GormStore
	activity *activity.Bus
}

func setupServer(t *testing.T, opts Options) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	ctx := context.Background()
	tasks := task.NewGormStore(gdb)
	tasks.SetClock(func() time.Time { return testNow })
	users := user.NewGormStore(gdb, user.NewPasswordHasher(bcrypt.MinCost))
	events := activity.NewGormStore(gdb)
	for _, s := range []interface{ EnsureTable(context.Context) error }{tasks, users, events} {
		if err := s.EnsureTable(ctx); err != nil {
			t.Fatalf("EnsureTable() error = %v", err)
		}
	}

	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	bus := activity.NewBus(events)
	return &testEnv{srv: New(tasks, users, bus, opts), tasks: tasks, users: users, activity: bus}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) create(t *testing.T, body string) map[string]any {
	t.Helper()
	w := e.do(t, "POST", "/api/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	return decode[map[string]any](t, w)
}

func TestHealth(t *testing.T) {
	env := setupServer(t, Options{})
	for _, path := range []string{"/api/health", "/health"} {
		w := env.do(t, "GET", path, "")
		if w.Code != http.StatusOK || decode[map[string]string](t, w)["status"] != "ok" {
			t.Errorf("GET %s = %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestCreateTask(t *testing.T) {
	env := setupServer(t, Options{})

	got := env.create(t, `{"title":"Pay rent","dueDate":"2026-03-10T18:00:00Z","id":999,"createdOn":"2001-01-01T00:00:00Z"}`)
	if got["id"] == float64(999) {
		t.Error("client-supplied id was honoured")
	}
	if got["status"] != "not-started" {
		t.Errorf("status = %v", got["status"])
	}
	if got["priority"] != "high" {
		t.Errorf("priority = %v, want high", got["priority"])
	}
	if got["createdByName"] != "System User" || got["createdById"] != nil {
		t.Errorf("attribution = %v/%v", got["createdById"], got["createdByName"])
	}
	if !strings.HasPrefix(got["createdOn"].(string), "2026-03-10") {
		t.Errorf("createdOn = %v", got["createdOn"])
	}
}

func TestCreateTask_KnownUser(t *testing.T) {
	env := setupServer(t, Options{DefaultActor: "Robot"})
	alice, err := env.users.Create(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	w := env.do(t, "POST", "/api/tasks", `{"title":"x","dueDate":"2026-03-20"}`, UserHeader, "alice")
	got := decode[map[string]any](t, w)
	if got["createdById"] != float64(alice.ID) || got["createdByName"] != "alice" {
		t.Errorf("attribution = %v/%v", got["createdById"], got["createdByName"])
	}

	w = env.do(t, "POST", "/api/tasks", `{"title":"y","dueDate":"2026-03-20"}`, UserHeader, "nobody")
	got = decode[map[string]any](t, w)
	if got["createdByName"] != "Robot" || got["createdById"] != nil {
		t.Errorf("unknown user attribution = %v/%v", got["createdById"], got["createdByName"])
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	env := setupServer(t, Options{})

	tests := []struct {
		body string
		want string
	}{
		{`{"title":"","dueDate":"2026-03-20"}`, "title"},
		{`{"title":"x"}`, "dueDate"},
		{`{"title":"x","dueDate":"someday"}`, "dueDate"},
		{`{"title":"x","dueDate":"2026-03-20","status":"done"}`, "status"},
		{`{"title":`, "Invalid JSON"},
	}
	for _, tt := range tests {
		w := env.do(t, "POST", "/api/tasks", tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %s = %d, want 400", tt.body, w.Code)
			continue
		}
		if msg := decode[map[string]string](t, w)["message"]; !strings.Contains(msg, tt.want) {
			t.Errorf("POST %s message = %q, want mention of %q", tt.body, msg, tt.want)
		}
	}

	all, _ := env.tasks.All(context.Background())
	if len(all) != 0 {
		t.Errorf("invalid requests created %d tasks", len(all))
	}
}

func TestGetTask(t *testing.T) {
	env := setupServer(t, Options{})
	created := env.create(t, `{"title":"x","dueDate":"2026-03-25"}`)

	w := env.do(t, "GET", "/api/tasks/"+jsonID(created), "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}
	if got := decode[map[string]any](t, w); got["title"] != "x" || got["priority"] != "low" {
		t.Errorf("GET = %v", got)
	}

	for path, want := range map[string]int{
		"/api/tasks/abc":  http.StatusBadRequest,
		"/api/tasks/0":    http.StatusBadRequest,
		"/api/tasks/-4":   http.StatusBadRequest,
		"/api/tasks/9999": http.StatusNotFound,
	} {
		if w := env.do(t, "GET", path, ""); w.Code != want {
			t.Errorf("GET %s = %d, want %d", path, w.Code, want)
		}
	}
	w = env.do(t, "GET", "/api/tasks/9999", "")
	if msg := decode[map[string]string](t, w)["message"]; msg != "Task not found" {
		t.Errorf("404 message = %q", msg)
	}
}

func TestUpdateTask(t *testing.T) {
	env := setupServer(t, Options{})
	created := env.create(t, `{"title":"Original","dueDate":"2026-03-25","createdByName":"alice"}`)
	path := "/api/tasks/" + jsonID(created)

	w := env.do(t, "PATCH", path, `{"title":"Renamed","createdByName":"mallory","createdOn":"2001-01-01T00:00:00Z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH = %d %s", w.Code, w.Body.String())
	}
	got := decode[map[string]any](t, w)
	if got["title"] != "Renamed" || got["createdByName"] != "alice" || got["createdOn"] != created["createdOn"] {
		t.Errorf("PATCH result = %v", got)
	}
	if got["lastUpdatedByName"] != "System User" {
		t.Errorf("lastUpdatedByName = %v", got["lastUpdatedByName"])
	}

	if w := env.do(t, "PATCH", path, `{"status":"archived"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad status PATCH = %d, want 400", w.Code)
	}
	if w := env.do(t, "PATCH", "/api/tasks/9999", `{"title":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("PATCH missing = %d, want 404", w.Code)
	}
	if w := env.do(t, "PATCH", path, `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("PATCH bad json = %d, want 400", w.Code)
	}
}

func TestUpdateTask_EmptyBody(t *testing.T) {
	env := setupServer(t, Options{})
	created := env.create(t, `{"title":"Original","dueDate":"2026-03-25"}`)
	path := "/api/tasks/" + jsonID(created)

	for _, body := range []string{"", "{}"} {
		w := env.do(t, "PATCH", path, body)
		if w.Code != http.StatusOK {
			t.Fatalf("PATCH %q = %d %s", body, w.Code, w.Body.String())
		}
		if got := decode[map[string]any](t, w); got["title"] != "Original" {
			t.Errorf("PATCH %q changed title to %v", body, got["title"])
		}
	}
}

func TestStatusChange(t *testing.T) {
	env := setupServer(t, Options{})
	created := env.create(t, `{"title":"x","dueDate":"2026-03-10T09:00:00Z"}`)
	path := "/api/tasks/" + jsonID(created) + "/status"

	w := env.do(t, "POST", path, `{"status":"completed"}`)
	if w.Code != http.StatusOK || decode[map[string]any](t, w)["status"] != "completed" {
		t.Fatalf("status change = %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, "POST", path, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing status = %d, want 400", w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	env := setupServer(t, Options{})
	created := env.create(t, `{"title":"x","dueDate":"2026-03-25"}`)
	path := "/api/tasks/" + jsonID(created)

	if w := env.do(t, "DELETE", path, ""); w.Code != http.StatusNoContent {
		t.Fatalf("first DELETE = %d", w.Code)
	}
	if w := env.do(t, "DELETE", path, ""); w.Code != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", w.Code)
	}
	if w := env.do(t, "GET", path, ""); w.Code != http.StatusNotFound {
		t.Errorf("GET after DELETE = %d, want 404", w.Code)
	}
}

func TestListTasks(t *testing.T) {
	env := setupServer(t, Options{})
	env.create(t, `{"title":"Pay rent","dueDate":"2026-03-10T12:00:00Z"}`)
	env.create(t, `{"title":"Call plumber","description":"rent flat leak","dueDate":"2026-03-08","status":"in-progress"}`)
	env.create(t, `{"title":"apple pie","dueDate":"2026-03-12","status":"in-progress"}`)
	env.create(t, `{"title":"Banana bread","dueDate":"2026-04-01","status":"completed"}`)

	titlesOf := func(w *httptest.ResponseRecorder) []string {
		var out []string
		for _, v := range decode[[]map[string]any](t, w) {
			out = append(out, v["title"].(string))
		}
		return out
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Banana bread", "apple pie", "Call plumber", "Pay rent"}},
		{"?filter=all", []string{"Banana bread", "apple pie", "Call plumber", "Pay rent"}},
		{"?status=in-progress", []string{"apple pie", "Call plumber"}},
		{"?status=in-progress&search=RENT", []string{"Call plumber"}},
		{"?filter=overdue", []string{"Call plumber"}},
		{"?filter=upcoming&sortBy=title&sortOrder=asc", []string{"Pay rent", "apple pie"}},
		{"?search=zzz", nil},
		{"?sortBy=due-date&sortOrder=asc", []string{"Call plumber", "Pay rent", "apple pie", "Banana bread"}},
	}
	for _, tt := range tests {
		w := env.do(t, "GET", "/api/tasks"+tt.query, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", tt.query, w.Code)
			continue
		}
		if got := titlesOf(w); strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("GET %s = %v, want %v", tt.query, got, tt.want)
		}
	}

	for _, q := range []string{"?filter=tomorrow", "?status=done", "?sortBy=priority", "?sortOrder=sideways"} {
		if w := env.do(t, "GET", "/api/tasks"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", q, w.Code)
		}
	}

	w := env.do(t, "GET", "/api/tasks?search=zzz", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", w.Body.String())
	}
}

func TestTaskCounts(t *testing.T) {
	env := setupServer(t, Options{})
	env.create(t, `{"title":"a","dueDate":"2026-03-10T12:00:00Z"}`)
	env.create(t, `{"title":"b","dueDate":"2026-03-01","status":"in-progress"}`)
	env.create(t, `{"title":"c","dueDate":"2026-03-10T08:00:00Z","status":"completed"}`)

	w := env.do(t, "GET", "/api/tasks/counts", "")
	got := decode[map[string]int](t, w)
	want := map[string]int{"all": 3, "today": 2, "upcoming": 1, "overdue": 1, "notStarted": 1, "inProgress": 1, "completed": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("counts[%s] = %d, want %d (all: %v)", k, got[k], v, got)
		}
	}
}

func TestActivityLog(t *testing.T) {
	env := setupServer(t, Options{})
	created := env.create(t, `{"title":"x","dueDate":"2026-03-25"}`)
	id := jsonID(created)
	env.do(t, "PATCH", "/api/tasks/"+id, `{"remarks":"note"}`)
	env.do(t, "DELETE", "/api/tasks/"+id, "")
	env.create(t, `{"title":"other","dueDate":"2026-03-25"}`)

	w := env.do(t, "GET", "/api/activity?task="+id, "")
	events := decode[[]activity.Event](t, w)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	wantTypes := []string{activity.TaskDeleted, activity.TaskUpdated, activity.TaskCreated}
	for i, e := range events {
		if e.Type != wantTypes[i] || e.Actor != "System User" {
			t.Errorf("event %d = %s by %s", i, e.Type, e.Actor)
		}
	}

	w = env.do(t, "GET", "/api/activity?limit=2", "")
	if got := decode[[]activity.Event](t, w); len(got) != 2 {
		t.Errorf("limit=2 returned %d events", len(got))
	}
	if w := env.do(t, "GET", "/api/activity?task=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad task id = %d, want 400", w.Code)
	}
	for _, limit := range []string{"abc", "-1", "1.5"} {
		w := env.do(t, "GET", "/api/activity?limit="+limit, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s = %d, want 400", limit, w.Code)
			continue
		}
		if msg := decode[map[string]string](t, w)["message"]; !strings.HasPrefix(msg, "limit:") {
			t.Errorf("limit=%s message = %q", limit, msg)
		}
	}
	if err := env.activity.VerifyChain(context.Background()); err != nil {
		t.Errorf("VerifyChain() = %v", err)
	}
}

func TestNoActivityBus(t *testing.T) {
	env := setupServer(t, Options{})
	srv := New(env.tasks, env.users, nil, Options{Now: func() time.Time { return testNow }})

	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{"title":"x","dueDate":"2026-03-25"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create without bus = %d %s", w.Code, w.Body.String())
	}

	for _, path := range []string{"/api/activity", "/api/activity/stream"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s without bus = %d, want 404", path, w.Code)
		}
	}
}

func TestActivityStream(t *testing.T) {
	env := setupServer(t, Options{})
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/activity/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	post, err := http.Post(ts.URL+"/api/tasks", "application/json",
		bytes.NewBufferString(`{"title":"streamed","dueDate":"2026-03-25"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	post.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line == "event: "+activity.TaskCreated+"\n" {
			data, _ := reader.ReadString('\n')
			if !strings.Contains(data, `"streamed"`) {
				t.Errorf("data line = %q", data)
			}
			return
		}
	}
}

func TestRateLimit(t *testing.T) {
	env := setupServer(t, Options{RequestsPerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		if w := env.do(t, "GET", "/api/health", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := env.do(t, "GET", "/api/health", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	env := setupServer(t, Options{})

	w := env.do(t, "GET", "/api/health", "", RequestIDHeader, "abc-123")
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("echoed request id = %q", got)
	}
	w = env.do(t, "GET", "/api/health", "")
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("no request id generated")
	}
}

func TestRecoverer(t *testing.T) {
	env := setupServer(t, Options{})
	h := env.srv.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if msg := decode[map[string]string](t, w)["message"]; msg != "Internal server error" {
		t.Errorf("message = %q", msg)
	}
}

func jsonID(v map[string]any) string {
	return strconv.FormatInt(int64(v["id"].(float64)), 10)
}
