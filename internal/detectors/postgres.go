package detectors

import (
	"regexp"
	"strings"

	"logguardd/internal/detect"
	"logguardd/internal/types"
)

var pgAuthPatterns = []string{
	"password authentication failed",
	"no pg_hba.conf entry",
	"pam authentication failed",
	"ldap authentication failed",
	"gss authentication failed",
	"sasl authentication failed",
	"authentication failed for user",
	"invalid length of startup packet",
	"replication connection startup rejected",
	"connection matched pg_hba.conf entry",
	"fatal:",
}

// PostgresAuth flags authentication failures and rejected connections in PostgreSQL logs
type PostgresAuth struct {
	reHost   *regexp.Regexp
	reClient *regexp.Regexp
}

// NewPostgresAuth compiles the address extractors
func NewPostgresAuth() (detect.Evaluator, error) {
	return &PostgresAuth{
		reHost:   regexp.MustCompile(`host=([0-9]{1,3}(?:\.[0-9]{1,3}){3})`),
		reClient: regexp.MustCompile(`client=([0-9]{1,3}(?:\.[0-9]{1,3}){3})`),
	}, nil
}

func (p *PostgresAuth) Evaluate(evt *types.Event) (*types.Incident, error) {
	if !strings.Contains(strings.ToLower(evt.Source), "postgres") {
		return nil, nil
	}

	lowered := strings.ToLower(evt.Raw)
	hit, ok := firstMatch(lowered, pgAuthPatterns)
	if !ok {
		return nil, nil
	}

	ip := evt.IP
	if ip == "" {
		ip = p.extractIP(evt.Raw)
	}

	severity := types.SeverityMedium
	if containsAny(lowered,
		"no pg_hba.conf entry", "invalid length of startup packet",
		"replication", "pam", "ldap", "sasl") {
		severity = types.SeverityHigh
	}

	return &types.Incident{
		AttackType:  "PostgreSQL Auth Failure",
		Description: "PostgreSQL signal: " + hit,
		Severity:    severity,
		IP:          ip,
		Evidence:    []types.Evidence{{Type: "pattern", Value: hit}},
	}, nil
}

func (p *PostgresAuth) extractIP(raw string) string {
	for _, re := range []*regexp.Regexp{p.reHost, p.reClient} {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}
