package dispatch

import (
	"context"
	"errors"
	"time"

	"agent-demo-webhooks/internal/toolcall"
)

// ErrNotFound is returned by Store lookups that match no row.
var ErrNotFound = errors.New("not found")

type Demo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id,omitempty"`
}

type Video struct {
	ID          string `json:"id"`
	DemoID      string `json:"demo_id"`
	Title       string `json:"title"`
	StoragePath string `json:"storage_path"`
}

// ProcessedEvent is the idempotency record of a handled delivery.
type ProcessedEvent struct {
	EventID        string
	EventType      string
	ConversationID string
	ToolName       string
}

type ShowcaseRecord struct {
	DemoID         string
	ConversationID string
	VideoID        string
	VideoTitle     string
	ShownAt        time.Time
}

// Objective is the output of a completed conversation objective.
type Objective struct {
	ConversationID  string
	DemoID          string
	ObjectiveName   string
	OutputVariables map[string]interface{}
	EventType       string
}

// Message is what the demo UI receives on its realtime channel.
type Message struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

type LeadAlert struct {
	DemoID         string
	DemoName       string
	ConversationID string
	RequestID      string
}

// IndexedEvent is the analytics document written per handled delivery.
type IndexedEvent struct {
	EventID        string                 `json:"event_id"`
	RequestID      string                 `json:"request_id"`
	EventType      string                 `json:"event_type"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	DemoID         string                 `json:"demo_id,omitempty"`
	ToolName       string                 `json:"tool_name,omitempty"`
	ToolArgs       map[string]interface{} `json:"tool_args,omitempty"`
	Outcome        string                 `json:"outcome"`
	Message        string                 `json:"message,omitempty"`
	ReceivedAt     time.Time              `json:"received_at"`
}

type Store interface {
	FindDemoByConversation(ctx context.Context, conversationID string) (*Demo, error)
	FindVideoByTitle(ctx context.Context, demoID, title string) (*Video, error)
	// MarkEventProcessed reports false when the event was already recorded.
	MarkEventProcessed(ctx context.Context, ev ProcessedEvent) (bool, error)
	RecordVideoShown(ctx context.Context, rec ShowcaseRecord) error
	SaveObjective(ctx context.Context, obj Objective) error
}

type URLSigner interface {
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, msg Message) error
}

// DemoCache returns (nil, nil) on a miss.
type DemoCache interface {
	Get(ctx context.Context, conversationID string) (*Demo, error)
	Set(ctx context.Context, conversationID string, demo *Demo) error
}

type LeadNotifier interface {
	NotifyTrialCTA(ctx context.Context, alert LeadAlert) error
}

type EventIndexer interface {
	IndexEvent(ctx context.Context, ev IndexedEvent) error
}

// Request is one parsed webhook delivery.
type Request struct {
	RequestID string
	Event     toolcall.Event
	Call      toolcall.ParsedToolCall
	RawBody   []byte
}

// Result is the acknowledgement returned to the provider. Exactly one of
// Received or Message is meaningful.
type Result struct {
	Received bool
	Message  string
}
