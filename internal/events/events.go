// Package events publishes report lifecycle events to a Redis stream.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	ReportCreated       = "report.created"
	ReportStatusUpdated = "report.status.updated"
	ReportReclassified  = "report.reclassified"
)

// Event represents a domain event
type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	ReportID  string          `json:"report_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type ReportCreatedPayload struct {
	ReportID     string    `json:"report_id"`
	Type         string    `json:"type"`
	SpecificType string    `json:"specific_type"`
	Department   string    `json:"department"`
	Confidence   string    `json:"confidence"`
	Anonymous    bool      `json:"anonymous"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReportStatusUpdatedPayload struct {
	ReportID  string    `json:"report_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ActorID   int64     `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type ReportReclassifiedPayload struct {
	ReportID      string `json:"report_id"`
	OldDepartment string `json:"old_department"`
	NewDepartment string `json:"new_department"`
	Confidence    string `json:"confidence"`
}

// NewEvent creates a new Event
func NewEvent(eventType string, reportID string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		ReportID:  reportID,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// ParsePayload parses the payload into the specified type
func (e *Event) ParsePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
