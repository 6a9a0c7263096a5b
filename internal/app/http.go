package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SabarathinamR/FinalJob/internal/auth"
	"github.com/SabarathinamR/FinalJob/internal/search"
	"github.com/SabarathinamR/FinalJob/internal/session"
	"github.com/SabarathinamR/FinalJob/internal/store"
)

const sessionCookieName = "jobsheet_session"

type authService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Validate(ctx context.Context, sessionID string) (session.Data, error)
	Logout(ctx context.Context, sessionID string)
}

type HTTPServer struct {
	service    *Service
	auth       authService
	corsOrigin string
	sessionTTL time.Duration
}

func NewHTTPServer(service *Service, authSvc authService, corsOrigin string, sessionTTL time.Duration) *HTTPServer {
	return &HTTPServer{service: service, auth: authSvc, corsOrigin: corsOrigin, sessionTTL: sessionTTL}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/logout" {
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			s.auth.Logout(r.Context(), cookie.Value)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Email-link routes carry no session: the address on the approval
	// URL is the authorization, so approvers can act straight from
	// their mail client.
	if r.Method == http.MethodGet && r.URL.Path == "/api/approve" {
		s.handleApprove(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "jobsheet" && r.Method == http.MethodGet {
		id, ok := parseID(parts[2])
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
			return
		}
		s.handleGetJobSheet(w, r, id)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/pm/approve-and-update" {
		s.handleFinalize(w, r)
		return
	}

	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/employees" {
		teamNo := strings.TrimSpace(r.URL.Query().Get("team"))
		employees, err := s.service.Employees(r.Context(), teamNo)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/jobsheet/start" {
		s.handleStart(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/jobsheet/complete" {
		s.handleComplete(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/jobsheets" {
		s.handleSearch(w, r)
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "jobsheet" && parts[3] == "history" && r.Method == http.MethodGet {
		if id, ok := parseID(parts[2]); ok {
			s.handleHistory(w, r, id)
			return
		}
	}

	if len(parts) == 5 && parts[0] == "api" && parts[1] == "jobsheet" && parts[3] == "history" && r.Method == http.MethodGet {
		if id, ok := parseID(parts[2]); ok {
			snapshot, err := s.service.HistorySnapshot(r.Context(), id, parts[4])
			if err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(snapshot)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	sessionID, err := s.auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "username": body.Username})
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var body StartInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	id, err := s.service.Start(r.Context(), body)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"jobId": id, "status": store.StatusInProgress})
}

func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID int64 `json:"jobId"`
		store.CompletionFields
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if body.JobID == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "jobId is required")
		return
	}
	sheet, pdf, err := s.service.Complete(r.Context(), body.JobID, body.CompletionFields)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	if pdf != nil {
		// The foreman gets the same PDF the OM receives.
		w.Header().Set("Content-Disposition", "attachment; filename=\""+pdf.Filename+"\"")
		w.Header().Set("Content-Type", pdf.MimeType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf.Data)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobId": sheet.ID, "status": sheet.Status})
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	approver := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("approver")))
	id, ok := parseID(r.URL.Query().Get("jobId"))
	if !ok {
		writeApprovalPage(w, http.StatusBadRequest, "Invalid Link", "This approval link is missing its job reference.")
		return
	}

	sheet, err := s.service.Approve(r.Context(), id, approver)
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			title := "Approval Failed"
			if domainErr.Code == "ALREADY_PROCESSED" {
				title = "Already Processed"
			}
			writeApprovalPage(w, domainErr.Status, title, domainErr.Message)
			return
		}
		log.Printf("approve jobId=%d approver=%s: %v", id, approver, err)
		writeApprovalPage(w, http.StatusInternalServerError, "Approval Failed", "An unexpected error occurred. Please try again later.")
		return
	}

	writeApprovalPage(w, http.StatusOK, "Approval Recorded",
		fmt.Sprintf("Job Sheet %s has been approved. Its status is now '%s'.", sheet.JobSheetNo, sheet.Status))
}

func (s *HTTPServer) handleGetJobSheet(w http.ResponseWriter, r *http.Request, id int64) {
	sheet, err := s.service.Get(r.Context(), id)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

func (s *HTTPServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID int64 `json:"jobId"`
		store.FinalizeFields
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if body.JobID == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "jobId is required")
		return
	}
	sheet, err := s.service.Finalize(r.Context(), body.JobID, body.FinalizeFields)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":       sheet.ID,
		"status":      sheet.Status,
		"finalStatus": sheet.FinalStatus,
	})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, id int64) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := s.service.History(r.Context(), id, limit)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer")
			return
		}
		if parsed > 0 {
			limit = parsed
		}
	}
	payload := s.service.Search(r.Context(), search.Query{
		Text:   strings.TrimSpace(r.URL.Query().Get("query")),
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:  limit,
	})
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (session.Data, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return session.Data{}, false
	}
	data, err := s.auth.Validate(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return session.Data{}, false
	}
	return data, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":  code,
		"error": message,
	})
}

// writeApprovalPage renders the small HTML page shown in the browser
// after an approval-link click.
func writeApprovalPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 60px;">
<h1>%s</h1>
<p>%s</p>
<p>You may close this window.</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func mapError(err error) (status int, code, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}
