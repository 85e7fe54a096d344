package parser

// AuthOutcome classifies an authentication record
type AuthOutcome int

const (
	AuthFailed AuthOutcome = iota
	AuthInvalidUser
	AuthAccepted
)

// AuthAttempt is an authentication record pulled out of a service log line
type AuthAttempt struct {
	Outcome AuthOutcome
	User    string
	IP      string
	Method  string // sshd auth method, e.g. "password" or "publickey"
}
