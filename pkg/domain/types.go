package domain

import "time"

// Greeting is the assistant message every new transcript starts with.
const Greeting = "Hey! I am a chatbot that can search the web. How can I help you?"

// InputPlaceholder is shown in empty chat inputs.
const InputPlaceholder = "What is machine learning?"

// Message is a single entry in a session transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionInfo provides metadata about a live chat session.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// ToolDescriptor describes one lookup tool. MaxChars of zero means the
// tool output is not truncated.
type ToolDescriptor struct {
	Kind        ToolKind `json:"kind"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MaxChars    int      `json:"max_chars,omitempty"`
}

// Model represents an available LLM model.
type Model struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Event is pushed to a chat front-end while a session is in use.
// Only the fields relevant to Type are set.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	State   State     `json:"state,omitempty"`
	Text    string    `json:"text,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Input   string    `json:"input,omitempty"`
	Round   int       `json:"round,omitempty"`
	IsError bool      `json:"is_error,omitempty"`
}
