package audit

import (
	"time"

	"logguardd/internal/types"
)

// eventRecord is the persisted form of an Event. Timestamps are RFC 3339 strings in UTC
// so records sort lexically by time.
type eventRecord struct {
	Source       string `json:"source"`
	Kind         string `json:"kind"`
	IP           string `json:"ip,omitempty"`
	Timestamp    string `json:"timestamp"`
	Raw          string `json:"raw"`
	Method       string `json:"method,omitempty"`
	Path         string `json:"path,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseSize *int64 `json:"response_size,omitempty"`
	Referrer     string `json:"referrer,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
}

type incidentRecord struct {
	ID          string           `json:"id"`
	Detector    string           `json:"detector"`
	AttackType  string           `json:"attack_type"`
	Description string           `json:"description"`
	Severity    string           `json:"severity"`
	IP          string           `json:"ip,omitempty"`
	DetectedAt  string           `json:"detected_at"`
	Evidence    []types.Evidence `json:"evidence,omitempty"`
	Event       *eventRecord     `json:"event,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func newRecord(inc *types.Incident) incidentRecord {
	rec := incidentRecord{
		ID:          inc.ID,
		Detector:    inc.Detector,
		AttackType:  inc.AttackType,
		Description: inc.Description,
		Severity:    string(inc.Severity),
		IP:          inc.IP,
		DetectedAt:  formatTime(inc.DetectedAt),
		Evidence:    inc.Evidence,
	}
	if evt := inc.Event; evt != nil {
		rec.Event = &eventRecord{
			Source:     evt.Source,
			Kind:       string(evt.Kind),
			IP:         evt.IP,
			Timestamp:  formatTime(evt.Timestamp),
			Raw:        evt.Raw,
			Method:     evt.Method,
			Path:       evt.Path,
			StatusCode: evt.StatusCode,
			Referrer:   evt.Referrer,
			UserAgent:  evt.UserAgent,
		}
		if evt.Method != "" {
			size := evt.ResponseSize
			rec.Event.ResponseSize = &size
		}
	}
	return rec
}
