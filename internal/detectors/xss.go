package detectors

import (
	"strings"

	"logguardd/internal/types"
)

var (
	xssPatterns = []string{
		"<script", "</script", "onerror=", "onload=", "javascript:", "alert(",
		"<img", "<svg", "<iframe",
	}
	// Applications and databases echo request payloads into their own logs
	xssSources = []string{"mysql", "apache", "app", "web", "nginx"}
)

// XSS flags script injection payloads in web, application and database logs
func XSS(evt *types.Event) (*types.Incident, error) {
	if !containsAny(strings.ToLower(evt.Source), xssSources...) {
		return nil, nil
	}

	text := searchText(evt.Raw, evt.Path)
	hit, ok := firstMatch(text, xssPatterns)
	if !ok {
		return nil, nil
	}

	severity := types.SeverityMedium
	if containsAny(text, "<script", "javascript:") {
		severity = types.SeverityHigh
	}

	return &types.Incident{
		AttackType:  "XSS",
		Description: "XSS pattern detected: " + hit,
		Severity:    severity,
		IP:          evt.IP,
		Evidence:    []types.Evidence{{Type: "pattern", Value: hit}},
	}, nil
}
