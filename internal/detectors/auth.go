package detectors

import (
	"fmt"
	"strings"

	"logguardd/internal/detect"
	"logguardd/internal/parser"
	"logguardd/internal/types"
)

// MySQLAuth flags rejected logins recorded by MySQL and MariaDB
type MySQLAuth struct {
	parser *parser.MySQLParser
}

func NewMySQLAuth() (detect.Evaluator, error) {
	return &MySQLAuth{parser: parser.NewMySQLParser()}, nil
}

func (m *MySQLAuth) Evaluate(evt *types.Event) (*types.Incident, error) {
	if !containsAny(strings.ToLower(evt.Source), "mysql", "mariadb") {
		return nil, nil
	}
	attempt, ok := m.parser.Parse(evt.Raw)
	if !ok {
		return nil, nil
	}

	return &types.Incident{
		AttackType:  "MySQL Auth Failure",
		Description: fmt.Sprintf("Access denied for database user '%s'", attempt.User),
		Severity:    types.SeverityMedium,
		IP:          attempt.IP,
		Evidence:    []types.Evidence{{Type: "user", Value: attempt.User}},
	}, nil
}

// SSHAuth flags failed sshd logins and successful root logins
type SSHAuth struct {
	parser *parser.SSHParser
}

func NewSSHAuth() (detect.Evaluator, error) {
	return &SSHAuth{parser: parser.NewSSHParser()}, nil
}

func (s *SSHAuth) Evaluate(evt *types.Event) (*types.Incident, error) {
	if !containsAny(strings.ToLower(evt.Source), "auth", "ssh", "secure") {
		return nil, nil
	}
	attempt, ok := s.parser.Parse(evt.Raw)
	if !ok {
		return nil, nil
	}

	inc := &types.Incident{
		AttackType: "SSH Authentication Failure",
		Severity:   types.SeverityMedium,
		IP:         attempt.IP,
		Evidence: []types.Evidence{
			{Type: "user", Value: attempt.User},
			{Type: "method", Value: attempt.Method},
		},
	}

	switch attempt.Outcome {
	case parser.AuthInvalidUser:
		inc.Severity = types.SeverityHigh
		inc.Description = fmt.Sprintf("Failed %s for invalid user '%s'", attempt.Method, attempt.User)
	case parser.AuthFailed:
		inc.Description = fmt.Sprintf("Failed %s for user '%s'", attempt.Method, attempt.User)
	case parser.AuthAccepted:
		if attempt.User != "root" {
			return nil, nil
		}
		inc.AttackType = "Suspicious Root Login"
		inc.Severity = types.SeverityHigh
		inc.Description = fmt.Sprintf("Successful %s login for root", attempt.Method)
	}
	return inc, nil
}
