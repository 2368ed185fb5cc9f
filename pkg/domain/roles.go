package domain

// Role defines the sender of a transcript message.
type Role string

const (
	// RoleUser indicates a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant indicates a message produced by the agent.
	RoleAssistant Role = "assistant"
)

// State is the processing state of a chat session.
type State string

const (
	// StateAwaitingInput means the session accepts a new submission.
	StateAwaitingInput State = "awaiting_input"
	// StateProcessing means the agent is working on the last submission.
	StateProcessing State = "processing"
)

// ToolKind enumerates the fixed set of lookup tools.
type ToolKind string

const (
	// ToolKindSearch is general web search.
	ToolKindSearch ToolKind = "search"
	// ToolKindPaperLookup is academic paper search (arXiv).
	ToolKindPaperLookup ToolKind = "paper_lookup"
	// ToolKindEncyclopediaLookup is encyclopedia search (Wikipedia).
	ToolKindEncyclopediaLookup ToolKind = "encyclopedia_lookup"
)

// EventType tags a UI event.
type EventType string

const (
	EventMessage    EventType = "message"
	EventState      EventType = "state"
	EventWarning    EventType = "warning"
	EventError      EventType = "error"
	EventToken      EventType = "token"
	EventRound      EventType = "round"
	EventToolStart  EventType = "tool_start"
	EventToolFinish EventType = "tool_end"
)
