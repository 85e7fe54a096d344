package response

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"logguardd/internal/metrics"
)

// Socket delegates blocks to the privileged executor over its Unix socket, so the
// analyzer itself never needs root.
type Socket struct {
	path    string
	timeout time.Duration

	mu      sync.Mutex
	handled map[string]bool

	log logrus.FieldLogger
}

func NewSocket(path string, log logrus.FieldLogger) *Socket {
	return &Socket{
		path:    path,
		timeout: 5 * time.Second,
		handled: make(map[string]bool),
		log:     log.WithField("sink", "executor"),
	}
}

func (s *Socket) Name() string { return "executor" }

// Apply asks the executor to ban ip once
func (s *Socket) Apply(ctx context.Context, ip string) {
	entry := s.log.WithField("ip", ip)
	if net.ParseIP(ip) == nil {
		entry.Warn("Refusing to block invalid address")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled[ip] {
		entry.Debug("Address already blocked")
		return
	}

	if err := s.request(ctx, "ban "+ip); err != nil {
		entry.WithError(err).Error("Executor request failed")
		return
	}
	s.handled[ip] = true
	metrics.IPsBlocked.WithLabelValues(s.Name()).Inc()
	entry.Warn("Address blocked via executor")
}

func (s *Socket) request(ctx context.Context, line string) error {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "unix", s.path)
	if err != nil {
		return fmt.Errorf("dial executor: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(conn, line); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply != "ok" {
		return fmt.Errorf("executor replied %q", reply)
	}
	return nil
}
