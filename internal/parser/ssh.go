package parser

import (
	"regexp"
)

// SSHParser extracts authentication records from sshd logs
type SSHParser struct {
	reFailed        *regexp.Regexp
	reFailedInvalid *regexp.Regexp
	reAccepted      *regexp.Regexp
}

// NewSSHParser creates a new SSH log parser
func NewSSHParser() *SSHParser {
	return &SSHParser{
		// Failed password for invalid user root from 1.2.3.4 port 22 ssh2
		reFailedInvalid: regexp.MustCompile(`Failed (\w+) for invalid user (\S+) from (\S+)`),
		// Failed password for root from 1.2.3.4 port 22 ssh2
		reFailed: regexp.MustCompile(`Failed (\w+) for (\S+) from (\S+)`),
		// Accepted publickey for root from 1.2.3.4 port 22 ssh2
		reAccepted: regexp.MustCompile(`Accepted (\w+) for (\S+) from (\S+)`),
	}
}

// Parse reports the authentication record in line, if any
func (p *SSHParser) Parse(line string) (AuthAttempt, bool) {
	// Invalid user first, the plain pattern matches it too
	if m := p.reFailedInvalid.FindStringSubmatch(line); m != nil {
		return AuthAttempt{Outcome: AuthInvalidUser, Method: m[1], User: m[2], IP: m[3]}, true
	}
	if m := p.reFailed.FindStringSubmatch(line); m != nil {
		return AuthAttempt{Outcome: AuthFailed, Method: m[1], User: m[2], IP: m[3]}, true
	}
	if m := p.reAccepted.FindStringSubmatch(line); m != nil {
		return AuthAttempt{Outcome: AuthAccepted, Method: m[1], User: m[2], IP: m[3]}, true
	}
	return AuthAttempt{}, false
}
