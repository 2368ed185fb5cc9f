// Package chat implements the two-state chat loop shared by the web page and
// the terminal client.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/searchchat/pkg/agent"
	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/store"
)

var (
	// ErrEmptyInput is returned for blank submissions.
	ErrEmptyInput = errors.New("input is empty")
	// ErrBusy is returned when a submission arrives while the previous one is
	// still being processed.
	ErrBusy = errors.New("session is processing another request")
	// ErrMissingCredential is returned by a Builder when no API key is
	// available.
	ErrMissingCredential = errors.New("missing API credential")
)

// MissingCredentialWarning is shown when a question arrives without an API key.
const MissingCredentialWarning = "Please enter your Groq API key in the sidebar."

// Sink receives UI events for one session.
type Sink func(domain.Event)

// Answerer produces a final answer for a prompt.
type Answerer interface {
	Run(ctx context.Context, input string, obs agent.Observer) (*agent.Result, error)
}

// Builder creates an Answerer for the credential supplied with a submission.
type Builder func(ctx context.Context, credential string) (Answerer, error)

// SubmitRequest is one user turn.
type SubmitRequest struct {
	Credential string
	Content    string
}

// Session is one conversation: a transcript plus its processing state.
type Session struct {
	id    string
	store store.TranscriptStore
	build Builder

	mu    sync.Mutex
	state domain.State
}

// NewSession creates the transcript and seeds it with the greeting.
func NewSession(ctx context.Context, st store.TranscriptStore, build Builder) (*Session, error) {
	s := &Session{
		id:    uuid.NewString(),
		store: st,
		build: build,
		state: domain.StateAwaitingInput,
	}
	if err := st.CreateSession(ctx, s.id); err != nil {
		return nil, fmt.Errorf("creating transcript: %w", err)
	}
	if _, err := s.append(ctx, domain.RoleAssistant, domain.Greeting); err != nil {
		return nil, fmt.Errorf("appending greeting: %w", err)
	}
	slog.Debug("Session created", "sessionID", s.id)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current processing state.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the messages in display order.
func (s *Session) Transcript(ctx context.Context) ([]domain.Message, error) {
	return s.store.Messages(ctx, s.id)
}

// Close discards the transcript.
func (s *Session) Close(ctx context.Context) error {
	if err := s.store.DeleteSession(ctx, s.id); err != nil {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	slog.Debug("Session closed", "sessionID", s.id)
	return nil
}

// Submit processes one user turn. The user message is appended and echoed
// before any work starts. Agent and credential failures are reported to the
// sink and leave the transcript without an assistant reply. The session is
// back in StateAwaitingInput when Submit returns.
func (s *Session) Submit(ctx context.Context, req SubmitRequest, sink Sink) error {
	if strings.TrimSpace(req.Content) == "" {
		return ErrEmptyInput
	}
	if sink == nil {
		sink = func(domain.Event) {}
	}

	s.mu.Lock()
	if s.state == domain.StateProcessing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state = domain.StateProcessing
	s.mu.Unlock()
	defer s.setState(domain.StateAwaitingInput, sink)

	userMsg, err := s.append(ctx, domain.RoleUser, req.Content)
	if err != nil {
		return fmt.Errorf("appending user message: %w", err)
	}
	sink(domain.Event{Type: domain.EventMessage, Message: userMsg})
	sink(domain.Event{Type: domain.EventState, State: domain.StateProcessing})

	answerer, err := s.build(ctx, req.Credential)
	if errors.Is(err, ErrMissingCredential) {
		slog.Info("Submission without credential", "sessionID", s.id)
		sink(domain.Event{Type: domain.EventWarning, Text: MissingCredentialWarning})
		return nil
	}
	if err != nil {
		s.reportError(err, sink)
		return nil
	}

	prompt, err := s.prompt(ctx)
	if err != nil {
		return fmt.Errorf("building prompt: %w", err)
	}

	start := time.Now()
	result, err := answerer.Run(ctx, prompt, &sinkObserver{sink: sink})
	if err != nil {
		s.reportError(err, sink)
		return nil
	}
	slog.Info("Answered", "sessionID", s.id, "rounds", result.Rounds, "steps", len(result.Steps),
		"incomplete", result.Incomplete, "duration", time.Since(start))

	reply, err := s.append(ctx, domain.RoleAssistant, result.Answer)
	if err != nil {
		return fmt.Errorf("appending answer: %w", err)
	}
	sink(domain.Event{Type: domain.EventMessage, Message: reply})
	return nil
}

// prompt joins the contents of the whole transcript, greeting included.
func (s *Session) prompt(ctx context.Context) (string, error) {
	msgs, err := s.store.Messages(ctx, s.id)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n"), nil
}

func (s *Session) append(ctx context.Context, role domain.Role, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Session) reportError(err error, sink Sink) {
	slog.Error("Failed to answer", "sessionID", s.id, "error", err)
	sink(domain.Event{Type: domain.EventError, Text: fmt.Sprintf("An error occurred: %v", err)})
}

func (s *Session) setState(state domain.State, sink Sink) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	sink(domain.Event{Type: domain.EventState, State: state})
}

// sinkObserver forwards agent progress to the UI.
type sinkObserver struct {
	sink Sink
}

func (o *sinkObserver) RoundStarted(round int) {
	o.sink(domain.Event{Type: domain.EventRound, Round: round})
}

func (o *sinkObserver) Token(delta string) {
	o.sink(domain.Event{Type: domain.EventToken, Text: delta})
}

func (o *sinkObserver) ToolStarted(tool, input string) {
	o.sink(domain.Event{Type: domain.EventToolStart, Tool: tool, Input: input})
}

func (o *sinkObserver) ToolFinished(tool, observation string, err error) {
	o.sink(domain.Event{Type: domain.EventToolFinish, Tool: tool, Text: observation, IsError: err != nil})
}
