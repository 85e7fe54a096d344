package parser

import (
	"regexp"
)

// MySQLParser parses the MySQL/MariaDB error log's access-denied records
type MySQLParser struct {
	reDenied *regexp.Regexp
}

func NewMySQLParser() *MySQLParser {
	return &MySQLParser{
		// Access denied for user 'root'@'1.2.3.4' (using password: YES)
		reDenied: regexp.MustCompile(`Access denied for user '([^']*)'@'([^']*)'`),
	}
}

// Parse reports a failed login in line, if any
func (p *MySQLParser) Parse(line string) (AuthAttempt, bool) {
	m := p.reDenied.FindStringSubmatch(line)
	if m == nil {
		return AuthAttempt{}, false
	}
	return AuthAttempt{Outcome: AuthFailed, User: m[1], IP: m[2]}, true
}
