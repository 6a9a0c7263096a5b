package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SabarathinamR/FinalJob/internal/auth"
	"github.com/SabarathinamR/FinalJob/internal/search"
	"github.com/SabarathinamR/FinalJob/internal/session"
	"github.com/SabarathinamR/FinalJob/internal/store"
)

type fakeAuth struct {
	sessions map[string]string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{sessions: map[string]string{}}
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (string, error) {
	if username != "admin" || password != "secret" {
		return "", auth.ErrInvalidCredentials
	}
	id := fmt.Sprintf("sess-%d", len(f.sessions)+1)
	f.sessions[id] = username
	return id, nil
}

func (f *fakeAuth) Validate(ctx context.Context, sessionID string) (session.Data, error) {
	username, ok := f.sessions[sessionID]
	if !ok {
		return session.Data{}, session.ErrNotFound
	}
	return session.Data{Username: username}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, sessionID string) {
	delete(f.sessions, sessionID)
}

type httpHarness struct {
	server *HTTPServer
	store  *memStore
	mail   *fakeMailer
	auth   *fakeAuth
}

func newHTTPHarness() *httpHarness {
	ms := newMemStore()
	ms.teams["T1"] = store.TeamAssignment{
		TeamNo:  "T1",
		OMEmail: "om@example.test",
		QCEmail: "qc@example.test",
		PMEmail: "pm@example.test",
		HREmail: "hr@example.test",
	}
	mail := &fakeMailer{}
	svc := newTestService(ms, mail)
	fa := newFakeAuth()
	return &httpHarness{
		server: NewHTTPServer(svc, fa, "*", 8*time.Hour),
		store:  ms,
		mail:   mail,
		auth:   fa,
	}
}

func (h *httpHarness) do(t *testing.T, method, path string, body any, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	}
	recorder := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func (h *httpHarness) loggedIn(t *testing.T) string {
	t.Helper()
	id, err := h.auth.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return id
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	h := newHTTPHarness()

	recorder := h.do(t, http.MethodGet, "/api/health", nil, "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := newHTTPHarness()

	recorder := h.do(t, http.MethodGet, "/api/ready", nil, "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h := newHTTPHarness()

	recorder := h.do(t, http.MethodPost, "/api/login", map[string]string{
		"username": "admin", "password": "secret",
	}, "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	cookies := recorder.Result().Cookies()
	var found bool
	for _, cookie := range cookies {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			found = true
			if !cookie.HttpOnly {
				t.Fatal("session cookie must be HttpOnly")
			}
		}
	}
	if !found {
		t.Fatal("no session cookie set")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHTTPHarness()

	recorder := h.do(t, http.MethodPost, "/api/login", map[string]string{
		"username": "admin", "password": "wrong",
	}, "")

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestOperatorRoutesRequireSession(t *testing.T) {
	h := newHTTPHarness()

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/employees?team=T1"},
		{http.MethodPost, "/api/jobsheet/start"},
		{http.MethodPost, "/api/jobsheet/complete"},
		{http.MethodGet, "/api/jobsheets?query=GT"},
		{http.MethodGet, "/api/jobsheet/1/history"},
	} {
		recorder := h.do(t, route.method, route.path, nil, "")
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want 401", route.method, route.path, recorder.Code)
		}
	}
}

func TestStartCreatesJobSheet(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)

	recorder := h.do(t, http.MethodPost, "/api/jobsheet/start", map[string]any{
		"jobSheetNo": "GT-1", "teamNo": "T1", "siteForeman": "R. Kumar",
	}, sess)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["status"] != store.StatusInProgress {
		t.Fatalf("status field = %v", payload["status"])
	}

	// Same job sheet number again conflicts.
	recorder = h.do(t, http.MethodPost, "/api/jobsheet/start", map[string]any{
		"jobSheetNo": "GT-1", "teamNo": "T1",
	}, sess)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", recorder.Code)
	}
}

func TestCompleteRespondsWithPDF(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)

	h.do(t, http.MethodPost, "/api/jobsheet/start", map[string]any{
		"jobSheetNo": "GT-1", "teamNo": "T1",
	}, sess)

	recorder := h.do(t, http.MethodPost, "/api/jobsheet/complete", map[string]any{
		"jobId": 1, "recordedBy": "R. Kumar",
	}, sess)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "GT-1.pdf") {
		t.Fatalf("content disposition = %q", recorder.Header().Get("Content-Disposition"))
	}
}

func TestApproveLinkRendersAckPage(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)
	h.do(t, http.MethodPost, "/api/jobsheet/start", map[string]any{"jobSheetNo": "GT-1", "teamNo": "T1"}, sess)
	h.do(t, http.MethodPost, "/api/jobsheet/complete", map[string]any{"jobId": 1}, sess)

	// No session cookie: the link works straight from the mail client.
	recorder := h.do(t, http.MethodGet, "/api/approve?approver=om&jobId=1", nil, "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(recorder.Body.String(), "Approval Recorded") {
		t.Fatalf("body = %q", recorder.Body.String())
	}

	// Second click: conflict, rendered as a page, nothing mutated.
	recorder = h.do(t, http.MethodGet, "/api/approve?approver=om&jobId=1", nil, "")
	if recorder.Code != http.StatusConflict {
		t.Fatalf("repeat status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "Already Processed") {
		t.Fatalf("repeat body = %q", recorder.Body.String())
	}
	sheet, _ := h.store.GetJobSheet(context.Background(), 1)
	if sheet.Status != store.StatusPendingQCApproval {
		t.Fatalf("status after repeat click = %q", sheet.Status)
	}
}

func TestApproveLinkWithBadJobID(t *testing.T) {
	h := newHTTPHarness()

	recorder := h.do(t, http.MethodGet, "/api/approve?approver=om&jobId=banana", nil, "")

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestGetJobSheetIsPollTarget(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)
	h.do(t, http.MethodPost, "/api/jobsheet/start", map[string]any{"jobSheetNo": "GT-1", "teamNo": "T1"}, sess)

	// No session: the PM edit view polls without one.
	recorder := h.do(t, http.MethodGet, "/api/jobsheet/1", nil, "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["jobSheetNo"] != "GT-1" {
		t.Fatalf("payload = %v", payload)
	}

	recorder = h.do(t, http.MethodGet, "/api/jobsheet/999", nil, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing sheet status = %d", recorder.Code)
	}

	// A malformed id is not a different route family: it answers 404
	// here, not 401 from the session gate further down.
	recorder = h.do(t, http.MethodGet, "/api/jobsheet/banana", nil, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("non-numeric id status = %d, want 404", recorder.Code)
	}
}

func TestFinalizeEndpoint(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)
	h.do(t, http.MethodPost, "/api/jobsheet/start", map[string]any{"jobSheetNo": "GT-1", "teamNo": "T1"}, sess)
	h.do(t, http.MethodPost, "/api/jobsheet/complete", map[string]any{"jobId": 1}, sess)
	h.do(t, http.MethodGet, "/api/approve?approver=om&jobId=1", nil, "")
	h.do(t, http.MethodGet, "/api/approve?approver=qc&jobId=1", nil, "")

	recorder := h.do(t, http.MethodPost, "/api/pm/approve-and-update", map[string]any{
		"jobId": 1, "jobSheetNo": "GT-1", "teamNo": "T1", "contractNo": "C-7",
	}, "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["status"] != store.StatusCompleted || payload["finalStatus"] != store.StatusCompleted {
		t.Fatalf("payload = %v", payload)
	}

	// Repeat finalize conflicts.
	recorder = h.do(t, http.MethodPost, "/api/pm/approve-and-update", map[string]any{"jobId": 1}, "")
	if recorder.Code != http.StatusConflict {
		t.Fatalf("repeat status = %d", recorder.Code)
	}
}

type fakeSearch struct {
	lastQuery search.Query
}

func (f *fakeSearch) Search(ctx context.Context, q search.Query) search.Response {
	f.lastQuery = q
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexJobSheet(record search.Record) {}

func TestSearchLimitValidation(t *testing.T) {
	h := newHTTPHarness()
	fs := &fakeSearch{}
	h.server.service.search = fs
	sess := h.loggedIn(t)

	// Non-positive limits fall back to the default instead of reaching
	// the search backends.
	recorder := h.do(t, http.MethodGet, "/api/jobsheets?query=GT&limit=-5", nil, sess)
	if recorder.Code != http.StatusOK {
		t.Fatalf("negative limit status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	if fs.lastQuery.Limit != 20 {
		t.Fatalf("limit = %d, want default 20", fs.lastQuery.Limit)
	}

	recorder = h.do(t, http.MethodGet, "/api/jobsheets?query=GT&limit=0", nil, sess)
	if recorder.Code != http.StatusOK {
		t.Fatalf("zero limit status = %d", recorder.Code)
	}
	if fs.lastQuery.Limit != 20 {
		t.Fatalf("limit = %d, want default 20", fs.lastQuery.Limit)
	}

	recorder = h.do(t, http.MethodGet, "/api/jobsheets?query=GT&limit=5", nil, sess)
	if recorder.Code != http.StatusOK {
		t.Fatalf("valid limit status = %d", recorder.Code)
	}
	if fs.lastQuery.Limit != 5 {
		t.Fatalf("limit = %d, want 5", fs.lastQuery.Limit)
	}

	recorder = h.do(t, http.MethodGet, "/api/jobsheets?query=GT&limit=ten", nil, sess)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-integer limit status = %d", recorder.Code)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)

	recorder := h.do(t, http.MethodGet, "/api/logout", nil, sess)
	if recorder.Code != http.StatusOK {
		t.Fatalf("logout status = %d", recorder.Code)
	}

	recorder = h.do(t, http.MethodGet, "/api/employees?team=T1", nil, sess)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("after logout status = %d", recorder.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newHTTPHarness()
	sess := h.loggedIn(t)

	recorder := h.do(t, http.MethodGet, "/api/nope", nil, sess)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
}
