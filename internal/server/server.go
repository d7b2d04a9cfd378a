// package server contains the loopback HTTP plumbing for the OAuth flow
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/oauth2"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers.
// Implementations serve specific endpoints (the OAuth callback, health).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// LoggingMiddleware logs each request's method, path, and duration.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// CallbackServer runs a temporary loopback HTTP server for one OAuth
// authorization flow. It serves the callback route, waits for exactly one
// result, and shuts down.
type CallbackServer struct {
	addr    string
	logger  *log.Logger
	handler *OAuthHandler
}

// NewCallbackServer creates a CallbackServer bound to addr (host:port from
// the configured redirect URI).
func NewCallbackServer(addr string, config *oauth2.Config, state string, logger *log.Logger) *CallbackServer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &CallbackServer{
		addr:    addr,
		logger:  shared.WithLogger(logger, "component", "callback"),
		handler: NewOAuthHandler(config, state),
	}
}

// WaitForToken serves until the callback delivers a token, the context ends,
// or the timeout elapses. The server is always shut down before returning.
func (s *CallbackServer) WaitForToken(ctx context.Context, timeout time.Duration) (*oauth2.Token, error) {
	router := NewBasicRouter()
	router.Use(LoggingMiddleware(s.logger))
	router.Handler(s.handler)

	srv := &http.Server{Addr: s.addr, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("waiting for authorization callback", "addr", s.addr)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return result.Token, nil
	case err := <-errChan:
		return nil, fmt.Errorf("%w: callback server failed: %v", shared.ErrAuthFailed, err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: no callback received within %s", shared.ErrAuthFailed, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
