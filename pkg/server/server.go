package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nstogner/searchchat/pkg/chat"
	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/store"
	"github.com/nstogner/searchchat/pkg/tools"
)

// Info describes the server-side model configuration shown by the page.
type Info struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	// HasCredential reports whether an API key was configured in the
	// environment. The page may still supply its own.
	HasCredential bool   `json:"has_credential"`
	Greeting      string `json:"greeting"`
	Placeholder   string `json:"placeholder"`
}

// ModelLister lists models with the server-side credential.
type ModelLister func(ctx context.Context) ([]domain.Model, error)

// Server serves the chat page, the chat websocket and a small JSON API.
type Server struct {
	transcripts store.TranscriptStore
	tools       *tools.Registry
	build       chat.Builder
	listModels  ModelLister
	info        Info
	distFS      fs.FS

	// baseCtx parents every chat session; Shutdown cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc
	srv     *http.Server

	// Hijacked sockets are invisible to http.Server.Shutdown, so they are
	// tracked here. handlers counts chat handlers that have not yet closed
	// their session.
	mu       sync.Mutex
	closing  bool
	conns    map[*wsConn]struct{}
	handlers sync.WaitGroup
}

// New creates a new Server. distFS must contain a dist/ directory with
// index.html. listModels may be nil when no server-side credential exists.
func New(
	transcripts store.TranscriptStore,
	registry *tools.Registry,
	build chat.Builder,
	listModels ModelLister,
	info Info,
	distFS fs.FS,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	if info.Greeting == "" {
		info.Greeting = domain.Greeting
	}
	if info.Placeholder == "" {
		info.Placeholder = domain.InputPlaceholder
	}
	s := &Server{
		transcripts: transcripts,
		tools:       registry,
		build:       build,
		listModels:  listModels,
		info:        info,
		distFS:      distFS,
		baseCtx:     ctx,
		cancel:      cancel,
		conns:       make(map[*wsConn]struct{}),
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// WebSocket
	mux.HandleFunc("GET /api/chat", s.handleChatWebSocket)

	// Static assets (single page)
	mux.HandleFunc("GET /", s.handleStatic)

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start(addr string) error {
	s.srv.Addr = addr
	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown ends all chat sessions and gracefully stops the server. It
// returns once every session has been torn down, or when ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if live, err := s.transcripts.ListSessions(ctx); err == nil {
		slog.Info("Shutting down", "liveSessions", len(live))
	}

	s.cancel()
	for _, c := range conns {
		c.closeGoingAway()
	}
	err := s.srv.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for chat sessions: %w", ctx.Err())
	}
	return err
}

// track registers a chat connection. It reports false once Shutdown has
// started; the caller must then drop the connection.
func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.handlers.Done()
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api") {
		http.NotFound(w, r)
		return
	}

	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	} else if path[0] == '/' {
		path = path[1:]
	}

	distFS, err := fs.Sub(s.distFS, "dist")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Try serving the exact file.
	if f, err := distFS.Open(path); err == nil {
		stat, statErr := f.Stat()
		f.Close()
		if statErr == nil && !stat.IsDir() && path != "index.html" {
			http.FileServer(http.FS(distFS)).ServeHTTP(w, r)
			return
		}
	}

	index, err := distFS.Open("index.html")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer index.Close()
	rs, ok := index.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, "index.html", time.Time{}, rs)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
