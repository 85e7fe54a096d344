package types

import (
	"errors"
	"strings"
	"time"
)

// ErrConfiguration marks startup conditions that prevent the pipeline from running
// (no usable log source, no detector, unreadable config).
var ErrConfiguration = errors.New("configuration error")

// Severity is the totally ordered rating of an incident
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityOrder = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns the position of s in LOW < MEDIUM < HIGH < CRITICAL, or -1 when
// s is not one of the four known levels.
func (s Severity) Rank() int {
	for i, known := range severityOrder {
		if s == known {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known level
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AtLeast reports whether s >= min. Unknown values on either side never satisfy
// the comparison.
func (s Severity) AtLeast(min Severity) bool {
	a, b := s.Rank(), min.Rank()
	if a < 0 || b < 0 {
		return false
	}
	return a >= b
}

// ParseSeverity reads a case-insensitive level name, returning def when the value
// is empty or unknown.
func ParseSeverity(v string, def Severity) Severity {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if s.Valid() {
		return s
	}
	return def
}

// SourceKind is the grammar family a source name was normalized with
type SourceKind string

const (
	KindAccess   SourceKind = "access"
	KindDatabase SourceKind = "database"
	KindGeneric  SourceKind = "generic"
)

// Event is the normalized form of one ingested log line.
// Raw is always set; the parsed fields are zero when the line did not match its grammar.
type Event struct {
	Source    string     `json:"source"`
	Kind      SourceKind `json:"kind"`
	IP        string     `json:"ip,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Raw       string     `json:"raw"`

	// Access log fields
	Method       string `json:"method,omitempty"`
	Path         string `json:"path,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseSize int64  `json:"response_size,omitempty"` // -1 when the log recorded "-"
	Referrer     string `json:"referrer,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
}

// Evidence holds key-value pairs supporting the detection
type Evidence struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Incident is a detector finding about a single Event
type Incident struct {
	ID          string     `json:"id"`
	Detector    string     `json:"detector"`
	AttackType  string     `json:"attack_type"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	IP          string     `json:"ip,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	Evidence    []Evidence `json:"evidence,omitempty"`
	Event       *Event     `json:"event"`
}
