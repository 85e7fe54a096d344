package response

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"logguardd/internal/action"
	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

// Command blocks addresses by running a command template such as
// "iptables -A INPUT -s {ip} -j DROP". The template is split into arguments before
// substitution and run without a shell.
type Command struct {
	name     string
	template []string
	jail     string
	enabled  bool
	active   bool
	run      action.Runner

	mu      sync.Mutex
	handled map[string]bool

	log logrus.FieldLogger
}

// NewCommand creates a template sink. With active false the command is only logged.
func NewCommand(name string, cfg types.CommandConfig, enabled, active bool, run action.Runner, log logrus.FieldLogger) *Command {
	if run == nil {
		run = action.ExecRunner
	}
	return &Command{
		name:     name,
		template: strings.Fields(cfg.Command),
		jail:     cfg.Jail,
		enabled:  enabled,
		active:   active,
		run:      run,
		handled:  make(map[string]bool),
		log:      log.WithField("sink", name),
	}
}

// NewIptables creates the iptables sink, enabled unless switched off
func NewIptables(cfg types.CommandConfig, active bool, run action.Runner, log logrus.FieldLogger) *Command {
	return NewCommand("iptables", cfg, cfg.Enabled == nil || *cfg.Enabled, active, run, log)
}

// NewFail2ban creates the fail2ban sink, disabled unless switched on. It refuses to
// act without a jail.
func NewFail2ban(cfg types.CommandConfig, active bool, run action.Runner, log logrus.FieldLogger) *Command {
	return NewCommand("fail2ban", cfg, cfg.Enabled != nil && *cfg.Enabled, active, run, log)
}

func (c *Command) Name() string { return c.name }

// Apply blocks ip once. Later calls for the same address are no-ops.
func (c *Command) Apply(ctx context.Context, ip string) {
	entry := c.log.WithField("ip", ip)
	if !c.enabled {
		entry.Debug("Response sink disabled, no action")
		return
	}
	if net.ParseIP(ip) == nil {
		entry.Warn("Refusing to block invalid address")
		return
	}
	if strings.Contains(strings.Join(c.template, " "), "{jail}") && c.jail == "" {
		entry.Warn("No jail configured, ban skipped")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handled[ip] {
		entry.Debug("Address already blocked")
		return
	}

	args := c.expand(ip)
	if len(args) == 0 {
		entry.Warn("Empty command template, ban skipped")
		return
	}

	if !c.active {
		entry.WithField("command", strings.Join(args, " ")).Warn("[SAFE MODE] Would execute")
		c.handled[ip] = true
		return
	}

	if err := c.run(ctx, args[0], args[1:]...); err != nil {
		entry.WithError(err).Error("Block command failed")
		return
	}
	c.handled[ip] = true
	metrics.IPsBlocked.WithLabelValues(c.name).Inc()
	entry.Warn("Address blocked")
}

func (c *Command) expand(ip string) []string {
	r := strings.NewReplacer("{ip}", ip, "{jail}", c.jail)
	args := make([]string, len(c.template))
	for i, part := range c.template {
		args[i] = r.Replace(part)
	}
	return args
}
