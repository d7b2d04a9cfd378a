package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func newHandler() *OAuthHandler {
	config := &oauth2.Config{
		ClientID:    "client",
		Endpoint:    oauth2.Endpoint{AuthURL: "http://auth.test", TokenURL: "http://token.test"},
		RedirectURL: "http://localhost:3000/callback",
	}
	return NewOAuthHandler(config, "state-token")
}

func TestOAuthHandlerRejectsBadState(t *testing.T) {
	h := newHandler()

	req := httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	result := <-h.Result()
	if result.Error() == nil {
		t.Error("expected state validation error")
	}
}

func TestOAuthHandlerRejectsDeniedAuthorization(t *testing.T) {
	h := newHandler()

	req := httptest.NewRequest(http.MethodGet, "/callback?state=state-token&error=access_denied", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	result := <-h.Result()
	if result.Error() == nil {
		t.Error("expected authorization error")
	}
}

func TestOAuthHandlerRejectsReplay(t *testing.T) {
	h := newHandler()

	first := httptest.NewRequest(http.MethodGet, "/callback?state=wrong", nil)
	h.ServeHTTP(httptest.NewRecorder(), first)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-token&code=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("replayed callback status = %d, want 400", rec.Code)
	}
}

func TestBasicRouterMethodFiltering(t *testing.T) {
	router := NewBasicRouter()
	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rec.Code)
	}
}

func TestBasicRouterMiddlewareOrder(t *testing.T) {
	router := NewBasicRouter()

	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router.Use(mw("outer"), mw("inner"))
	router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}
