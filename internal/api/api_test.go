package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"

	"resumedesk/internal/admin"
	"resumedesk/internal/auth"
	"resumedesk/internal/database/dbtest"
	"resumedesk/internal/errcode"
	"resumedesk/internal/fields"
	"resumedesk/internal/resume"
	"resumedesk/internal/storage"
	"resumedesk/internal/store"
	"resumedesk/internal/transport"
)

const (
	testSecret   = "internal-secret"
	testOperator = int64(900)
)

type stubDispatcher struct {
	mu     sync.Mutex
	events []transport.Event
	body   []byte
	err    error
}

func (d *stubDispatcher) Dispatch(_ context.Context, ev transport.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ev.Attachment != nil {
		rc, err := ev.Attachment.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		d.body, _ = io.ReadAll(rc)
	}
	d.events = append(d.events, ev)
	return d.err
}

func newTestRouter(t *testing.T, d Dispatcher, svc *admin.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := NewRouter(nil, 1<<20)
	h := Handlers{InternalSecret: testSecret}
	if d != nil {
		h.Events = NewEventHandler(d)
	}
	if svc != nil {
		h.Admin = NewAdminHandler(svc, 10)
	}
	RegisterRoutes(router, h)
	return router
}

func newTestService(t *testing.T) (*admin.Service, *store.Store) {
	t.Helper()
	s := store.New(dbtest.Open(t), fields.Default())
	svc := admin.NewService(admin.Options{
		Registry:  fields.Default(),
		Records:   s,
		Objects:   storage.NewLocalFs(afero.NewMemMapFs()),
		Operators: []int64{testOperator},
	})
	return svc, s
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	w := do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Fatalf("expected correlation id header")
	}

	w = do(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics got %d", w.Code)
	}
}

func TestPostEvent(t *testing.T) {
	d := &stubDispatcher{}
	router := newTestRouter(t, d, nil)

	body := `{"user_id": 42, "username": "ali_rz", "text": " /start "}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := do(router, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", testSecret)
	if w := do(router, req); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	if len(d.events) != 1 || d.events[0].UserID != 42 || d.events[0].Text != "/start" {
		t.Fatalf("unexpected events: %+v", d.events)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"user_id": 42}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", testSecret)
	if w := do(router, req); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty event got %d", w.Code)
	}
}

func TestPostEventTransportFailure(t *testing.T) {
	d := &stubDispatcher{err: fmt.Errorf("%w: gateway offline", errcode.ErrTransport)}
	router := newTestRouter(t, d, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"user_id": 1, "data": "consent:accept"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", testSecret)
	w := do(router, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", w.Code)
	}
	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != errcode.TransportFailure {
		t.Fatalf("expected code %d got %d", errcode.TransportFailure, resp.Code)
	}
}

func TestPostAttachment(t *testing.T) {
	d := &stubDispatcher{}
	router := newTestRouter(t, d, nil)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("user_id", "42")
	part, err := writer.CreateFormFile("file", "Portfolio.PDF")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.7")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/events/attachment", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Internal-Secret", testSecret)
	if w := do(router, req); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}

	if len(d.events) != 1 || d.events[0].Attachment == nil {
		t.Fatalf("expected one attachment event, got %+v", d.events)
	}
	att := d.events[0].Attachment
	if att.FileName != "Portfolio.PDF" || att.Size != 8 {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	if string(d.body) != "%PDF-1.7" {
		t.Fatalf("unexpected body %q", d.body)
	}
}

func adminRequest(path string, operator int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Internal-Secret", testSecret)
	req.Header.Set("X-Operator-ID", fmt.Sprint(operator))
	return req
}

func TestAdminRoutes(t *testing.T) {
	svc, s := newTestService(t)
	router := newTestRouter(t, nil, svc)
	registered := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	if err := s.SaveIntake(context.Background(), 7, resume.Intake{FullName: "Sara Ahmadi", Username: "sara_a", Degree: "Master", RegisterDate: &registered}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if w := do(router, adminRequest("/v1/admin/resumes", 1)); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-operator got %d", w.Code)
	}

	w := do(router, adminRequest("/v1/admin/resumes?q=sara&degree=Master", testOperator))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var page admin.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].UserID != 7 {
		t.Fatalf("unexpected page: %+v", page)
	}

	if w := do(router, adminRequest("/v1/admin/resumes/404", testOperator)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if w := do(router, adminRequest("/v1/admin/resumes?phone_main=1", testOperator)); w.Code != http.StatusOK {
		t.Fatalf("unknown query params are ignored, got %d", w.Code)
	}

	w = do(router, adminRequest("/v1/admin/stats?date=2026-10-18", testOperator))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from stats got %d", w.Code)
	}
	var st store.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Total != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	w = do(router, adminRequest("/v1/admin/export", testOperator))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from export got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != xlsxContentType || w.Header().Get("X-Export-Rows") != "1" {
		t.Fatalf("unexpected export headers: %v", w.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req.Header.Set("X-Internal-Secret", testSecret)
	if w := do(router, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without operator header got %d", w.Code)
	}
}

func TestWsRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens, err := auth.NewTokenService("0123456789abcdef0123", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	router := gin.New()
	RegisterRoutes(router, Handlers{Ws: NewWsHandler(nil, tokens, nil), InternalSecret: testSecret})
	server := httptest.NewServer(router)
	defer server.Close()

	for _, msg := range []string{`{"type":"auth","token":"garbage"}`, `{"type":"hello"}`, `not json`} {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/v1/ws", nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, err = conn.ReadMessage()
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("expected policy violation close for %q, got %v", msg, err)
		}
		conn.Close()
	}
}
