package ws

import "time"

// EventType represents the type of event broadcast to subscribers.
type EventType string

const (
	// EventTypeRunCompleted is emitted after a normalization run finishes.
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeRulesReloaded is emitted when the watched rule document
	// is reloaded, successfully or not.
	EventTypeRulesReloaded EventType = "rules_reloaded"
	// EventTypeConnection is emitted when subscribers connect or disconnect.
	EventTypeConnection EventType = "connection"
)

// Event is one message sent to connected subscribers.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RunEvent describes a completed normalization run.
type RunEvent struct {
	TableSource    string `json:"table_source"`
	Rules          int    `json:"rules"`
	ColumnsTouched int    `json:"columns_touched"`
	CellsChanged   int    `json:"cells_changed"`
	DurationMS     int64  `json:"duration_ms"`
	CacheHit       bool   `json:"cache_hit"`
}

// RulesReloadedEvent describes a rule document reload attempt.
type RulesReloadedEvent struct {
	Path    string `json:"path"`
	Rules   int    `json:"rules"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ConnectionEvent describes a subscriber connecting or disconnecting.
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected" or "disconnected"
	ClientID string `json:"client_id"`
}
