package parser

import (
	"strings"
	"time"

	"logguardd/internal/types"
)

// Source name prefixes per grammar family
var (
	accessPrefixes   = []string{"apache", "nginx", "httpd", "access", "web"}
	databasePrefixes = []string{"mysql", "mariadb", "postgres"}
)

// KindOf returns the grammar family for a source name
func KindOf(source string) types.SourceKind {
	name := strings.ToLower(source)
	for _, p := range accessPrefixes {
		if strings.HasPrefix(name, p) {
			return types.KindAccess
		}
	}
	for _, p := range databasePrefixes {
		if strings.HasPrefix(name, p) {
			return types.KindDatabase
		}
	}
	return types.KindGeneric
}

// Normalizer turns (source, raw line) pairs into Events. It never drops a line:
// anything that fails its grammar becomes a minimal Event stamped at normalization time.
type Normalizer struct {
	http *HTTPParser
	now  func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock
func NewNormalizer() *Normalizer {
	return &Normalizer{http: NewHTTPParser(), now: time.Now}
}

// Normalize builds exactly one Event for the line
func (n *Normalizer) Normalize(source, line string) *types.Event {
	line = strings.TrimRight(line, "\r\n")
	evt := &types.Event{
		Source: source,
		Kind:   KindOf(source),
		Raw:    line,
	}

	if evt.Kind == types.KindAccess && n.http.Parse(line, evt) {
		return evt
	}

	// Database and generic sources carry no address; a failed access line degrades to the same shape
	evt.Timestamp = n.now().UTC()
	return evt
}
