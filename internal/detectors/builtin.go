package detectors

import (
	"logguardd/internal/detect"
)

// Builtin returns the detectors shipped with logguardd, in dispatch order
func Builtin() []detect.Definition {
	return []detect.Definition{
		{Name: "sqli", Func: SQLInjection},
		{Name: "xss", Func: XSS},
		{Name: "scanner", Func: Scanner},
		{Name: "nikto", Object: &NiktoDetector{}},
		{Name: "postgresql", New: NewPostgresAuth},
		{Name: "mysql-auth", New: NewMySQLAuth},
		{Name: "ssh-auth", New: NewSSHAuth},
		{Name: "brute-force", Factory: bruteForceFactory},
	}
}
