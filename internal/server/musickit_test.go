package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMusicKitHandlerServesPage(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "dev-jwt") {
		t.Error("page does not embed the developer token")
	}
	if !strings.Contains(body, "musickit.js") {
		t.Error("page does not load MusicKit JS")
	}
}

func TestMusicKitHandlerUnknownPath(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMusicKitHandlerDeliversToken(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"token":"user-token"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	result := <-h.Result()
	if err := result.Error(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Token != "user-token" {
		t.Errorf("Token = %q", result.Token)
	}
}

func TestMusicKitHandlerReportsPageError(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"error":"user denied"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	result := <-h.Result()
	if result.Error() == nil || !strings.Contains(result.Error().Error(), "user denied") {
		t.Errorf("error = %v, want the page's failure reason", result.Error())
	}
}

func TestMusicKitHandlerRejectsBadPayload(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	result := <-h.Result()
	if result.Error() == nil {
		t.Error("expected decode error")
	}
}

func TestMusicKitHandlerRejectsReplay(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	first := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"token":"first"}`))
	h.ServeHTTP(httptest.NewRecorder(), first)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"token":"second"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("replayed delivery status = %d, want 400", rec.Code)
	}

	result := <-h.Result()
	if result.Token != "first" {
		t.Errorf("Token = %q, want the first delivery kept", result.Token)
	}
}

func TestMusicKitHandlerTokenMethodFiltering(t *testing.T) {
	h := NewMusicKitHandler("dev-jwt")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /token status = %d, want 405", rec.Code)
	}
}
