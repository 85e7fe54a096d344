package detect

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

type countingDetector struct {
	name  string
	calls int
	match bool
}

func (c *countingDetector) Name() string { return c.name }

func (c *countingDetector) Evaluate(evt *types.Event) (*types.Incident, error) {
	c.calls++
	if !c.match {
		return nil, nil
	}
	return &types.Incident{AttackType: c.name, Severity: types.SeverityMedium}, nil
}

type panickyDetector struct{ calls int }

func (p *panickyDetector) Name() string { return "panicky" }

func (p *panickyDetector) Evaluate(evt *types.Event) (*types.Incident, error) {
	p.calls++
	panic("index out of range")
}

func TestDispatch_NoShortCircuit(t *testing.T) {
	log, _ := test.NewNullLogger()
	a := &countingDetector{name: "a", match: true}
	b := &countingDetector{name: "b", match: true}
	c := &countingDetector{name: "c"}
	d := NewDispatcher([]Detector{a, b, c}, log)

	incidents := d.Dispatch(&types.Event{Source: "apache", IP: "10.0.0.5"})

	if len(incidents) != 2 {
		t.Fatalf("got %d incidents, want 2", len(incidents))
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want one each", a.calls, b.calls, c.calls)
	}
}

func TestDispatch_FailureIsolation(t *testing.T) {
	log, hook := test.NewNullLogger()
	bad := &panickyDetector{}
	erring := EvaluateFunc(func(evt *types.Event) (*types.Incident, error) {
		return nil, errors.New("regex exploded")
	})
	good := &countingDetector{name: "good", match: true}
	d := NewDispatcher([]Detector{bad, namedDetector{name: "erring", Evaluator: erring}, good}, log)

	before := testutil.ToFloat64(metrics.DetectorFailures.WithLabelValues("panicky"))

	for i := 0; i < 3; i++ {
		incidents := d.Dispatch(&types.Event{Source: "nginx"})
		if len(incidents) != 1 || incidents[0].Detector != "good" {
			t.Fatalf("pass %d: incidents = %+v", i, incidents)
		}
	}

	if bad.calls != 3 {
		t.Errorf("failing detector evaluated %d times, want 3", bad.calls)
	}
	if good.calls != 3 {
		t.Errorf("healthy detector evaluated %d times, want 3", good.calls)
	}
	if got := testutil.ToFloat64(metrics.DetectorFailures.WithLabelValues("panicky")) - before; got != 3 {
		t.Errorf("failure counter delta = %v, want 3", got)
	}

	var failures int
	for _, e := range hook.AllEntries() {
		if e.Level != logrus.ErrorLevel {
			continue
		}
		failures++
		if e.Data["source"] != "nginx" || e.Data["detector"] == nil {
			t.Errorf("failure log lacks context: %v", e.Data)
		}
	}
	if failures != 6 {
		t.Errorf("logged %d failures, want 6", failures)
	}
}

func TestDispatch_CompletesIncident(t *testing.T) {
	log, _ := test.NewNullLogger()
	d := NewDispatcher([]Detector{&countingDetector{name: "sqli", match: true}}, log)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	evt := &types.Event{Source: "apache", IP: "192.0.2.1"}
	inc := d.Dispatch(evt)[0]

	if inc.ID == "" {
		t.Error("incident ID not assigned")
	}
	if inc.Detector != "sqli" || inc.IP != "192.0.2.1" || inc.Event != evt {
		t.Errorf("incident = %+v", inc)
	}
	if !inc.DetectedAt.Equal(fixed) {
		t.Errorf("detected at %s, want %s", inc.DetectedAt, fixed)
	}
}
