package notify

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Notification Types
// =============================================================================

// EventType represents the type of lifecycle event.
type EventType string

// Event type constants.
const (
	EventStaged          EventType = "staged"
	EventReviewRequested EventType = "review_requested"
	EventApproved        EventType = "approved"
	EventRejected        EventType = "rejected"
	EventIngested        EventType = "ingested"
	EventIngestFailed    EventType = "ingest_failed"
	EventRunCompleted    EventType = "run_completed"
)

// Severity constants for notifications.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a lifecycle event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Tarball   string         `json:"tarball,omitempty"` // payload key
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends notifications about lifecycle events.
type Notifier interface {
	// Notify sends a notification. Callers treat failures as non-fatal.
	Notify(ctx context.Context, event Event) error
}

// DeliveryError reports a webhook that answered with a non-2xx status.
type DeliveryError struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Target, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s returned %d", e.Target, e.StatusCode)
}
