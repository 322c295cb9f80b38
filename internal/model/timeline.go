package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TimelineEntry records one status change of a report
type TimelineEntry struct {
	Status  ReportStatus `json:"status"`
	Note    string       `json:"note"`
	ActorID *int64       `json:"actorId,omitempty"`
	At      time.Time    `json:"at"`
}

// Timeline is a slice of TimelineEntry that implements SQL scanner/valuer for JSONB
type Timeline []TimelineEntry

// Value implements driver.Valuer for JSONB serialization
func (t Timeline) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]TimelineEntry{})
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB deserialization
func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		*t = Timeline{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal Timeline: not a byte slice")
	}

	return json.Unmarshal(bytes, t)
}

// AppendStatus adds a timeline entry for the report's transition to status.
func (r *Report) AppendStatus(status ReportStatus, note string, actorID *int64, at time.Time) {
	r.Status = status
	r.Timeline = append(r.Timeline, TimelineEntry{
		Status:  status,
		Note:    note,
		ActorID: actorID,
		At:      at,
	})
}

// LastUpdate returns the time of the most recent timeline entry, or CreatedAt.
func (r *Report) LastUpdate() time.Time {
	if n := len(r.Timeline); n > 0 {
		return r.Timeline[n-1].At
	}
	return r.CreatedAt
}
