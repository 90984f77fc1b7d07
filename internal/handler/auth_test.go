package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parkingwatch/internal/config"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/middleware"
)

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginHandler(t *testing.T) {
	h := LoginHandler(&config.Config{Password: "secret"}, logger.Discard())

	w := httptest.NewRecorder()
	h(w, postForm("/auth/login", url.Values{"password": {"wrong"}}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, postForm("/auth/login", url.Values{"password": {"secret"}}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after login, got %d", w.Code)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.AuthCookie || cookies[0].Value != middleware.SessionToken("secret") {
		t.Errorf("Unexpected cookies %+v", cookies)
	}
}

func TestLogoutHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LogoutHandler(w, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Errorf("Expected redirect to /login, got %d %s", w.Code, w.Header().Get("Location"))
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected cookie deletion, got %+v", cookies)
	}
}

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{LogDirectory: dir}
	l := logger.NewLogger(cfg)
	l.Info("hello from the log")

	w := httptest.NewRecorder()
	ShowLogsHandler(cfg, "info")(w, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "hello from the log") {
		t.Errorf("Unexpected log response %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	ClearLogsHandler(l, "info")(w, httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}

	// CleanLogs itself logs the truncation, so only the old entry must be gone.
	data, _ := os.ReadFile(filepath.Join(dir, "info.log"))
	if strings.Contains(string(data), "hello from the log") {
		t.Error("Expected info.log to be cleared")
	}

	w = httptest.NewRecorder()
	ShowLogsHandler(&config.Config{LogDirectory: t.TempDir()}, "warning")(w, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing log, got %d", w.Code)
	}
}
