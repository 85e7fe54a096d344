package alerting

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

// SMTP mails alerts through a STARTTLS-capable relay. An alert whose body matches the
// last delivered one is not sent again.
type SMTP struct {
	server   string
	port     int
	from     string
	to       string
	username string
	password string
	enabled  bool
	timeout  time.Duration

	deliver func(ctx context.Context, msg []byte) error

	mu       sync.Mutex
	lastBody string

	log logrus.FieldLogger
}

// NewSMTP creates the sink. Credentials are read from the environment variables
// named in the configuration.
func NewSMTP(cfg types.SMTPConfig, log logrus.FieldLogger) *SMTP {
	s := &SMTP{
		server:   cfg.Server,
		port:     cfg.Port,
		from:     cfg.FromEmail,
		to:       cfg.ToEmail,
		username: os.Getenv(cfg.UsernameEnv),
		password: os.Getenv(cfg.PasswordEnv),
		enabled:  cfg.Enabled,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:      log.WithField("sink", "smtp"),
	}
	if s.to == "" {
		s.to = s.from
	}
	s.deliver = s.sendMail
	return s
}

func (s *SMTP) Name() string { return "smtp" }

// Send mails one alert. Failures are logged, never returned.
func (s *SMTP) Send(ctx context.Context, subject, body string) {
	if !s.enabled {
		s.log.Debug("SMTP disabled, alert skipped")
		return
	}
	if s.username == "" || s.password == "" || s.from == "" {
		s.log.Warn("SMTP misconfigured, alert not sent")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastBody == body {
		s.log.Debug("Identical alert already sent, skipping")
		return
	}

	if err := s.deliver(ctx, s.buildMessage(subject, body)); err != nil {
		s.log.WithError(err).Error("Failed to send SMTP alert")
		return
	}
	s.lastBody = body
	metrics.AlertsSent.WithLabelValues(s.Name()).Inc()
	s.log.WithField("subject", subject).Info("SMTP alert sent")
}

func (s *SMTP) buildMessage(subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + s.to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// sendMail performs the SMTP conversation under one deadline
func (s *SMTP) sendMail(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(s.server, strconv.Itoa(s.port))
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, s.server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return errors.New("server does not offer STARTTLS")
	}
	if err := c.StartTLS(&tls.Config{ServerName: s.server, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.server)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	if err := c.Rcpt(s.to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
