package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"logguardd/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	detected_at TEXT NOT NULL,
	detector TEXT,
	attack_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	ip TEXT,
	description TEXT,
	source TEXT,
	event_timestamp TEXT,
	raw TEXT,
	document TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_incidents_detected_at ON incidents(detected_at);
CREATE INDEX IF NOT EXISTS idx_incidents_ip ON incidents(ip);`

// SQLiteReporter stores incidents in a local SQLite database
type SQLiteReporter struct {
	db   *sql.DB
	path string
	log  logrus.FieldLogger
}

// NewSQLiteReporter opens (or creates) the database at path
func NewSQLiteReporter(path string, log logrus.FieldLogger) (*SQLiteReporter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open incident database: %w", err)
	}
	// One writer; the pipeline is sequential anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create incident schema: %w", err)
	}
	return &SQLiteReporter{db: db, path: path, log: log.WithField("sink", "sqlite")}, nil
}

// Persist inserts the incident and returns sqlite://<path>#<id>, or "" on failure
func (s *SQLiteReporter) Persist(ctx context.Context, inc *types.Incident) string {
	rec := newRecord(inc)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode incident")
		return ""
	}

	var source, eventTS, raw string
	if rec.Event != nil {
		source, eventTS, raw = rec.Event.Source, rec.Event.Timestamp, rec.Event.Raw
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents
		(id, detected_at, detector, attack_type, severity, ip, description, source, event_timestamp, raw, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DetectedAt, rec.Detector, rec.AttackType, rec.Severity, rec.IP,
		rec.Description, source, eventTS, raw, string(doc),
	)
	if err != nil {
		s.log.WithError(err).WithField("id", rec.ID).Error("Failed to store incident")
		return ""
	}
	return fmt.Sprintf("sqlite://%s#%s", s.path, rec.ID)
}

func (s *SQLiteReporter) Close() error {
	return s.db.Close()
}
