package detect

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

// Dispatcher runs every detector against every event
type Dispatcher struct {
	detectors []Detector
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher over an already built detector list
func NewDispatcher(detectors []Detector, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		detectors: detectors,
		log:       log,
		now:       time.Now,
	}
}

// Detectors returns the names of the registered detectors in dispatch order
func (d *Dispatcher) Detectors() []string {
	names := make([]string, len(d.detectors))
	for i, det := range d.detectors {
		names[i] = det.Name()
	}
	return names
}

// Dispatch evaluates evt with each detector in turn. A failing detector is logged and
// counted; it never stops the remaining detectors and stays registered for later events.
func (d *Dispatcher) Dispatch(evt *types.Event) []*types.Incident {
	var incidents []*types.Incident
	for _, det := range d.detectors {
		inc, err := evaluate(det, evt)
		if err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"detector": det.Name(),
				"source":   evt.Source,
			}).Error("Detector failed")
			metrics.DetectorFailures.WithLabelValues(det.Name()).Inc()
			continue
		}
		if inc == nil {
			continue
		}
		d.complete(det, evt, inc)
		incidents = append(incidents, inc)
	}
	return incidents
}

func evaluate(det Detector, evt *types.Event) (inc *types.Incident, err error) {
	defer func() {
		if r := recover(); r != nil {
			inc, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return det.Evaluate(evt)
}

// complete fills the fields a detector is not expected to set itself
func (d *Dispatcher) complete(det Detector, evt *types.Event, inc *types.Incident) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.Detector == "" {
		inc.Detector = det.Name()
	}
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = d.now().UTC()
	}
	if inc.Event == nil {
		inc.Event = evt
	}
	if inc.IP == "" {
		inc.IP = evt.IP
	}
}
