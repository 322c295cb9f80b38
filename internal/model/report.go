package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Report struct {
	ID            string         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ReportID      string         `gorm:"not null;uniqueIndex;size:16" json:"reportId"`
	Type          ReportType     `gorm:"not null;size:20;index" json:"type"`
	SpecificType  string         `gorm:"size:50" json:"specificType"`
	Title         string         `gorm:"not null;size:255" json:"title"`
	Description   string         `gorm:"type:text;not null" json:"description"`
	Location      string         `gorm:"size:500" json:"location"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	Image         *string        `gorm:"type:text" json:"image,omitempty"`
	Status        ReportStatus   `gorm:"not null;default:'PENDING';size:20;index" json:"status"`
	Department    string         `gorm:"size:20;index" json:"department"`
	Confidence    string         `gorm:"size:10" json:"confidence"`
	ClassifiedVia string         `gorm:"size:20" json:"classifiedVia"`
	Analysis      datatypes.JSON `json:"analysis,omitempty"`
	UserID        *int64         `gorm:"index" json:"userId,omitempty"`
	Timeline      Timeline       `gorm:"type:jsonb;not null;default:'[]'" json:"timeline"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (Report) TableName() string {
	return "reports"
}

type ReportType string

const (
	ReportTypeEmergency    ReportType = "EMERGENCY"
	ReportTypeNonEmergency ReportType = "NON_EMERGENCY"
)

func (t ReportType) Valid() bool {
	return t == ReportTypeEmergency || t == ReportTypeNonEmergency
}

type ReportStatus string

const (
	StatusPending    ReportStatus = "PENDING"
	StatusInProgress ReportStatus = "IN_PROGRESS"
	StatusResolved   ReportStatus = "RESOLVED"
	StatusDismissed  ReportStatus = "DISMISSED"
)

var ReportStatuses = []ReportStatus{StatusPending, StatusInProgress, StatusResolved, StatusDismissed}

func (s ReportStatus) Valid() bool {
	for _, st := range ReportStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further work is expected on the report.
func (s ReportStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// ParseReportStatus accepts any casing and "in progress"/"in-progress" spellings.
func ParseReportStatus(s string) (ReportStatus, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	st := ReportStatus(normalized)
	return st, st.Valid()
}

// Incident kinds reported by citizens and returned by image analysis.
const (
	IncidentTheft            = "Theft"
	IncidentFireOutbreak     = "Fire Outbreak"
	IncidentMedicalEmergency = "Medical Emergency"
	IncidentNaturalDisaster  = "Natural Disaster"
	IncidentViolence         = "Violence"
	IncidentOther            = "Other"
)

var IncidentKinds = []string{
	IncidentTheft,
	IncidentFireOutbreak,
	IncidentMedicalEmergency,
	IncidentNaturalDisaster,
	IncidentViolence,
	IncidentOther,
}

// NormalizeIncidentKind maps free text onto IncidentKinds with a
// case-insensitive exact match, defaulting to Other.
func NormalizeIncidentKind(s string) string {
	s = strings.TrimSpace(s)
	for _, kind := range IncidentKinds {
		if strings.EqualFold(kind, s) {
			return kind
		}
	}
	return IncidentOther
}

// Classification provenance
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"

	ClassifiedViaModel     = "model"
	ClassifiedViaHeuristic = "heuristic"
	// ClassifiedViaHeuristicReviewed marks a keyword label kept after the
	// model answered Other. Triage does not pick these up again.
	ClassifiedViaHeuristicReviewed = "heuristic_reviewed"
)

// KeywordClassified reports whether via names a keyword-rule label.
func KeywordClassified(via string) bool {
	return via == ClassifiedViaHeuristic || via == ClassifiedViaHeuristicReviewed
}
