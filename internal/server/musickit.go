package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
)

// MusicKitResult contains the result of a MusicKit authorization flow.
type MusicKitResult struct {
	Token string
	err   error
}

func (m *MusicKitResult) Error() error {
	return m.err
}

// tokenPayload is the JSON body the authorization page posts back.
type tokenPayload struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// MusicKitHandler serves the MusicKit JS authorization page and receives the
// Music User Token the page posts back. Implements the Handler interface for
// registration with a Router.
type MusicKitHandler struct {
	developerToken string
	resultChan     chan MusicKitResult
	once           sync.Once
	received       bool
	mu             sync.Mutex
}

// NewMusicKitHandler creates a handler embedding the developer token into the
// served authorization page.
func NewMusicKitHandler(developerToken string) *MusicKitHandler {
	return &MusicKitHandler{
		developerToken: developerToken,
		resultChan:     make(chan MusicKitResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *MusicKitHandler) Routes() []string {
	return []string{"/", "/token"}
}

func (h *MusicKitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		h.receiveToken(w, r)
		return
	}
	h.servePage(w, r)
}

// servePage renders the MusicKit authorization page.
func (h *MusicKitHandler) servePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, musicKitPage, h.developerToken)
}

// receiveToken accepts the token (or error) the page posts back. Only the
// first delivery is processed; replays get a 400.
func (h *MusicKitHandler) receiveToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	if h.received {
		h.mu.Unlock()
		http.Error(w, "Token already processed", http.StatusBadRequest)
		return
	}
	h.received = true
	h.mu.Unlock()

	var payload tokenPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Send(MusicKitResult{err: fmt.Errorf("invalid token payload: %w", err)})
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	if payload.Token == "" {
		cause := payload.Error
		if cause == "" {
			cause = "token missing"
		}
		h.Send(MusicKitResult{err: fmt.Errorf("authorization failed: %s", cause)})
	} else {
		h.Send(MusicKitResult{Token: payload.Token})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"received"}`)
}

// Send sends the MusicKit result through the channel (only once).
func (h *MusicKitHandler) Send(result MusicKitResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *MusicKitHandler) Result() <-chan MusicKitResult {
	return h.resultChan
}

// MusicKitServer runs a temporary loopback HTTP server for one MusicKit
// authorization flow. It serves the sign-in page, waits for exactly one
// posted token, and shuts down.
type MusicKitServer struct {
	addr    string
	logger  *log.Logger
	handler *MusicKitHandler
}

// NewMusicKitServer creates a MusicKitServer bound to addr.
func NewMusicKitServer(addr, developerToken string, logger *log.Logger) *MusicKitServer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &MusicKitServer{
		addr:    addr,
		logger:  shared.WithLogger(logger, "component", "musickit"),
		handler: NewMusicKitHandler(developerToken),
	}
}

// URL returns the address the user's browser should open.
func (s *MusicKitServer) URL() string {
	return "http://" + s.addr + "/"
}

// WaitForToken serves until the page delivers a token, the context ends, or
// the timeout elapses. The server is always shut down before returning.
func (s *MusicKitServer) WaitForToken(ctx context.Context, timeout time.Duration) (string, error) {
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

	s.logger.Info("waiting for MusicKit authorization", "addr", s.addr)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return result.Token, nil
	case err := <-errChan:
		return "", fmt.Errorf("%w: authorization server failed: %v", shared.ErrAuthFailed, err)
	case <-timer.C:
		return "", fmt.Errorf("%w: no token received within %s", shared.ErrAuthFailed, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// musicKitPage is the inline authorization page. The single %s slot receives
// the developer token for MusicKit.configure.
const musicKitPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <title>tunesync</title>
    <script src="https://js-cdn.music.apple.com/musickit/v3/musickit.js"></script>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #fc3c44; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0 0 1rem 0; }
        button { border: none; background: #fc3c44; color: white; font-size: 16px;
                 padding: 12px 24px; border-radius: 8px; cursor: pointer; }
        button:disabled { background: #ccc; cursor: not-allowed; }
        #status { margin-top: 1.5rem; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorize Apple Music</h1>
        <p>Sign in with your Apple ID to let tunesync read your library.</p>
        <button id="auth-btn">Sign in to Apple Music</button>
        <div id="status">Waiting for authorization...</div>
    </div>
    <script>
        async function deliver(body) {
            await fetch('/token', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body)
            });
        }
        async function authorize() {
            const status = document.getElementById('status');
            const button = document.getElementById('auth-btn');
            status.textContent = 'Loading MusicKit...';
            button.disabled = true;
            try {
                await MusicKit.configure({
                    developerToken: %q,
                    app: { name: 'tunesync', build: '1.0' }
                });
                status.textContent = 'Waiting for Apple sign-in...';
                const token = await MusicKit.getInstance().authorize();
                status.textContent = 'Delivering token...';
                await deliver({ token });
                status.textContent = 'Authorization complete. You can close this window.';
            } catch (error) {
                console.error(error);
                status.textContent = 'Authorization failed. Close this window and try again.';
                await deliver({ error: error && error.message ? error.message : 'authorization failed' });
            }
        }
        document.getElementById('auth-btn').addEventListener('click', authorize);
    </script>
</body>
</html>
`
