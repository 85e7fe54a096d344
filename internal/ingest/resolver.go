package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"logguardd/internal/types"
)

// SourceMap maps a unique source name to the file it is read from
type SourceMap map[string]string

// Names returns the source names in a stable order
func (m SourceMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pathHints name a discovered file after the service it belongs to, ahead of its filename.
var pathHints = []struct {
	markers []string
	name    string
}{
	{[]string{"apache", "httpd"}, "apache"},
	{[]string{"nginx"}, "nginx"},
	{[]string{"mysql", "mariadb"}, "mysql"},
	{[]string{"postgres"}, "postgresql"},
}

// Resolver turns the logs section of the config into a SourceMap
type Resolver struct {
	// DefaultGlob is used when no include pattern is configured
	DefaultGlob string
	log         logrus.FieldLogger
}

// NewResolver creates a resolver that falls back to defaultGlob
func NewResolver(defaultGlob string, log logrus.FieldLogger) *Resolver {
	return &Resolver{DefaultGlob: defaultGlob, log: log}
}

// Resolve builds the source map. Explicit entries win over discovered files; an
// explicit path missing on disk is dropped with a warning. An empty result is a
// configuration error.
func (r *Resolver) Resolve(explicit map[string]string, include, exclude []string) (SourceMap, error) {
	sources := make(SourceMap)
	seen := make(map[string]bool)

	names := make([]string, 0, len(explicit))
	for name := range explicit {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := explicit[name]
		if err := checkRegular(path); err != nil {
			r.log.WithFields(logrus.Fields{"source": name, "path": path}).WithError(err).
				Warn("Log source unavailable, skipping")
			continue
		}
		sources[name] = path
		seen[absPath(path)] = true
	}

	if len(include) == 0 {
		include = []string{r.DefaultGlob}
	}

	excluded := make(map[string]bool)
	for _, pattern := range exclude {
		for _, path := range r.glob(pattern) {
			excluded[absPath(path)] = true
		}
	}

	for _, pattern := range include {
		for _, path := range r.glob(pattern) {
			abs := absPath(path)
			if excluded[abs] || seen[abs] {
				continue
			}
			if checkRegular(path) != nil {
				continue
			}
			name := inferSourceName(path, sources)
			sources[name] = path
			seen[abs] = true
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no log sources resolved", types.ErrConfiguration)
	}
	return sources, nil
}

func (r *Resolver) glob(pattern string) []string {
	if pattern == "" {
		return nil
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		r.log.WithField("pattern", pattern).WithError(err).Warn("Invalid glob pattern")
		return nil
	}
	sort.Strings(matches)
	return matches
}

// inferSourceName picks a name for a discovered file that is not yet taken in existing
func inferSourceName(path string, existing SourceMap) string {
	lower := strings.ToLower(path)

	base := ""
	for _, hint := range pathHints {
		for _, marker := range hint.markers {
			if strings.Contains(lower, marker) {
				base = hint.name
				break
			}
		}
		if base != "" {
			break
		}
	}

	if base == "" {
		file := filepath.Base(path)
		base = strings.TrimSuffix(file, filepath.Ext(file))
		if base == "" {
			base = file
		}
		if base == "" || base == "." || base == string(filepath.Separator) {
			base = "log"
		}
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
		candidate = base + "_" + strconv.Itoa(suffix)
	}
}

func checkRegular(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
