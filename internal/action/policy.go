package action

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

// AlertSink notifies an operator. Implementations swallow and log their own failures.
type AlertSink interface {
	Name() string
	Send(ctx context.Context, subject, body string)
}

// ResponseSink blocks an address. Repeated calls for the same address are no-ops.
type ResponseSink interface {
	Name() string
	Apply(ctx context.Context, ip string)
}

// ReportSink records an incident and returns where it went. An empty locator means
// the record could not be written.
type ReportSink interface {
	Persist(ctx context.Context, inc *types.Incident) string
}

// Thresholds are the two severity gates of the policy
type Thresholds struct {
	Alert types.Severity
	Block types.Severity
}

// Policy routes incidents to the report, alert and response sinks
type Policy struct {
	thresholds Thresholds
	allowIPs   map[string]bool
	allowNets  []*net.IPNet

	reporter   ReportSink
	alerts     []AlertSink
	responders []ResponseSink
	log        logrus.FieldLogger
}

// NewPolicy creates a policy. Allowlist entries are single addresses or CIDR ranges;
// entries that are neither are logged and ignored.
func NewPolicy(th Thresholds, allowlist []string, reporter ReportSink, alerts []AlertSink, responders []ResponseSink, log logrus.FieldLogger) *Policy {
	p := &Policy{
		thresholds: th,
		allowIPs:   make(map[string]bool),
		reporter:   reporter,
		alerts:     alerts,
		responders: responders,
		log:        log,
	}
	for _, entry := range allowlist {
		entry = strings.TrimSpace(entry)
		if ip := net.ParseIP(entry); ip != nil {
			p.allowIPs[ip.String()] = true
			continue
		}
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			p.allowNets = append(p.allowNets, ipnet)
			continue
		}
		log.WithField("entry", entry).Warn("Ignoring invalid allowlist entry")
	}
	return p
}

// Handle reports the incident, then alerts and blocks according to its severity.
// It never fails: sink problems stay inside the sinks.
func (p *Policy) Handle(ctx context.Context, inc *types.Incident) {
	severity := types.Severity(strings.ToUpper(string(inc.Severity)))
	entry := p.log.WithFields(logrus.Fields{
		"attack_type": inc.AttackType,
		"ip":          inc.IP,
		"severity":    severity,
		"detector":    inc.Detector,
	})
	entry.Warnf("Incident detected: %s", inc.Description)
	metrics.Incidents.WithLabelValues(inc.AttackType, string(severity)).Inc()

	locator := ""
	if p.reporter != nil {
		locator = p.reporter.Persist(ctx, inc)
	}
	if locator == "" {
		locator = "n/a"
	}

	if !severity.Valid() {
		entry.Warn("Unknown severity, incident reported without alert or block")
		return
	}

	if severity.AtLeast(p.thresholds.Alert) {
		subject, body := FormatAlert(inc, severity, locator)
		for _, sink := range p.alerts {
			sink.Send(ctx, subject, body)
		}
	}

	if inc.IP != "" && severity.AtLeast(p.thresholds.Block) {
		p.block(ctx, inc.IP, entry)
	}
}

func (p *Policy) block(ctx context.Context, ip string, entry logrus.FieldLogger) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		entry.Warn("Refusing to block invalid address")
		return
	}
	if p.allowed(parsed) {
		entry.Warn("Block skipped, address is allowlisted")
		return
	}
	for _, sink := range p.responders {
		sink.Apply(ctx, parsed.String())
	}
}

func (p *Policy) allowed(ip net.IP) bool {
	if p.allowIPs[ip.String()] {
		return true
	}
	for _, n := range p.allowNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// FormatAlert renders the operator notification for an incident
func FormatAlert(inc *types.Incident, severity types.Severity, locator string) (subject, body string) {
	subject = fmt.Sprintf("[IDS] %s (severity %s)", inc.AttackType, severity)
	body = fmt.Sprintf("Attack: %s\nSeverity: %s\nIP: %s\nDescription: %s\nReport: %s\n",
		inc.AttackType, severity, inc.IP, inc.Description, locator)
	return subject, body
}
