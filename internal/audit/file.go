package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"logguardd/internal/types"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileReporter writes one JSON document per incident into a directory
type FileReporter struct {
	dir string
	now func() time.Time
	log logrus.FieldLogger
}

// NewFileReporter creates the directory if needed
func NewFileReporter(dir string, log logrus.FieldLogger) (*FileReporter, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create incidents dir: %w", err)
	}
	return &FileReporter{dir: dir, now: time.Now, log: log.WithField("sink", "file")}, nil
}

// Persist writes the incident and returns the file path, or "" when the write failed
func (r *FileReporter) Persist(ctx context.Context, inc *types.Incident) string {
	path := filepath.Join(r.dir, r.fileName(inc))

	data, err := json.MarshalIndent(newRecord(inc), "", "  ")
	if err != nil {
		r.log.WithError(err).Error("Failed to encode incident")
		return ""
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		r.log.WithError(err).Error("Failed to create incident report")
		return ""
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		r.log.WithError(err).Error("Failed to write incident report")
		return ""
	}
	if err := f.Close(); err != nil {
		r.log.WithError(err).Error("Failed to close incident report")
		return ""
	}

	r.log.WithField("path", path).Info("Incident saved")
	return path
}

// fileName is <UTC yyyymmddThhmmssZ>_<attack>_<id8>.json
func (r *FileReporter) fileName(inc *types.Incident) string {
	id := inc.ID
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > 8 {
		id = id[:8]
	}
	attack := unsafeNameChars.ReplaceAllString(inc.AttackType, "_")
	if attack == "" {
		attack = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s.json", r.now().UTC().Format("20060102T150405Z"), attack, id)
}
