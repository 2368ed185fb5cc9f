package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nstogner/searchchat/pkg/chat"
	"github.com/nstogner/searchchat/pkg/domain"
)

const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what the page sends over the socket.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	APIKey  string `json:"api_key"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(e)
}

// closeGoingAway tells the client the server is leaving and closes the
// socket, which unblocks the handler's read loop.
func (c *wsConn) closeGoingAway() {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	c.ws.Close()
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// handleChatWebSocket runs one chat session for the lifetime of the
// connection. The transcript is discarded on disconnect.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()
	conn := &wsConn{ws: ws}
	if !s.track(conn) {
		conn.closeGoingAway()
		return
	}
	// Runs last, after the session has been closed.
	defer s.untrack(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	session, err := chat.NewSession(ctx, s.transcripts, s.build)
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		return
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			slog.Error("Failed to close session", "sessionID", session.ID(), "error", err)
		}
	}()
	slog.Info("Chat connected", "sessionID", session.ID(), "remote", r.RemoteAddr)

	sink := func(e domain.Event) {
		if err := conn.send(e); err != nil {
			slog.Debug("Dropping event", "sessionID", session.ID(), "type", e.Type, "error", err)
		}
	}

	// Send initial transcript and state.
	if err := s.syncTranscript(ctx, session, sink); err != nil {
		slog.Error("Failed initial transcript sync", "sessionID", session.ID(), "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Keepalive
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop: receives submissions. Each runs in its own goroutine so
	// that a disconnect is noticed (and the work cancelled) mid-answer.
	for {
		var msg clientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				slog.Error("WebSocket read error", "sessionID", session.ID(), "error", err)
			}
			break
		}
		if msg.Type != "" && msg.Type != "submit" {
			slog.Debug("Ignoring client message", "sessionID", session.ID(), "type", msg.Type)
			continue
		}

		req := chat.SubmitRequest{Credential: msg.APIKey, Content: msg.Content}
		if session.State() == domain.StateProcessing {
			sink(domain.Event{Type: domain.EventError, Text: chat.ErrBusy.Error()})
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := session.Submit(ctx, req, sink)
			switch {
			case errors.Is(err, chat.ErrEmptyInput):
			case errors.Is(err, chat.ErrBusy):
				sink(domain.Event{Type: domain.EventError, Text: err.Error()})
			case err != nil:
				slog.Error("Submit failed", "sessionID", session.ID(), "error", err)
				sink(domain.Event{Type: domain.EventError, Text: "An error occurred: " + err.Error()})
			}
		}()
	}

	cancel()
	wg.Wait()
	slog.Info("Chat disconnected", "sessionID", session.ID())
}

func (s *Server) syncTranscript(ctx context.Context, session *chat.Session, sink chat.Sink) error {
	msgs, err := session.Transcript(ctx)
	if err != nil {
		return err
	}
	for i := range msgs {
		sink(domain.Event{Type: domain.EventMessage, Message: &msgs[i]})
	}
	sink(domain.Event{Type: domain.EventState, State: session.State()})
	return nil
}
