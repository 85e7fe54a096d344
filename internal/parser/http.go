package parser

import (
	"regexp"
	"strconv"
	"time"

	"logguardd/internal/types"
)

// Apache/Nginx timestamps, with and without the zone offset
const (
	clfTimeLayout       = "02/Jan/2006:15:04:05 -0700"
	clfTimeLayoutNoZone = "02/Jan/2006:15:04:05"
)

// HTTPParser parses Nginx/Apache Common and Combined Log Format
// Format: 1.2.3.4 - user [01/Jan/2026:12:00:00 +0000] "GET /path HTTP/1.1" 200 123 "-" "UserAgent"
type HTTPParser struct {
	re *regexp.Regexp
}

func NewHTTPParser() *HTTPParser {
	// 1=IP, 2=Time, 3=Method, 4=Path, 5=Proto, 6=Status, 7=Size, 8=Ref, 9=UA
	return &HTTPParser{
		re: regexp.MustCompile(`^(\S+) \S+ \S+ \[([^\]]+)\] "(\S+) (\S+) ([^"]+)" (\d{3}) (\d+|-)(?: "([^"]*)" "([^"]*)")?`),
	}
}

// Parse fills evt from line, reporting false when the line does not follow the grammar.
// evt is left untouched on failure.
func (p *HTTPParser) Parse(line string, evt *types.Event) bool {
	matches := p.re.FindStringSubmatch(line)
	if matches == nil {
		return false
	}

	ts, ok := parseCLFTime(matches[2])
	if !ok {
		return false
	}
	status, err := strconv.Atoi(matches[6])
	if err != nil {
		return false
	}
	size := int64(-1)
	if matches[7] != "-" {
		size, err = strconv.ParseInt(matches[7], 10, 64)
		if err != nil {
			return false
		}
	}

	evt.IP = matches[1]
	evt.Timestamp = ts
	evt.Method = matches[3]
	evt.Path = matches[4]
	evt.StatusCode = status
	evt.ResponseSize = size
	evt.Referrer = matches[8]
	evt.UserAgent = matches[9]
	return true
}

func parseCLFTime(s string) (time.Time, bool) {
	if ts, err := time.Parse(clfTimeLayout, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(clfTimeLayoutNoZone, s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}
