package detectors

import (
	"logguardd/internal/types"
)

var sqliPatterns = []string{
	"%27", "%22", "' or 1=1", "' or '1'='1", " or 1=1 --",
	"union select", "information_schema", "sleep(", "benchmark(", "extractvalue(",
	"updatexml(", "load_file(", "outfile", "sqlmap",
}

// SQLInjection flags SQL injection attempts in access-log requests.
// A sqlmap fingerprint escalates to CRITICAL; time-based payloads are labelled but stay HIGH.
func SQLInjection(evt *types.Event) (*types.Incident, error) {
	if evt.Kind != types.KindAccess {
		return nil, nil
	}

	text := searchText(evt.Raw, evt.Path)
	hit, ok := firstMatch(text, sqliPatterns)
	if !ok {
		return nil, nil
	}

	severity := types.SeverityHigh
	description := "SQLi pattern detected: " + hit
	switch {
	case containsAny(text, "sqlmap"):
		severity = types.SeverityCritical
		description += " (sqlmap)"
	case containsAny(text, "sleep(", "benchmark("):
		description += " (time-based)"
	}

	return &types.Incident{
		AttackType:  "SQL Injection",
		Description: description,
		Severity:    severity,
		IP:          evt.IP,
		Evidence:    []types.Evidence{{Type: "pattern", Value: hit}},
	}, nil
}
