package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"logguardd/internal/types"
)

const (
	DefaultIncludeGlob  = "/var/log/**/*.log"
	DefaultPollInterval = 500 * time.Millisecond
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// LoadConfig reads the configuration from the given path
func LoadConfig(path string) (*types.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open config file: %v", types.ErrConfiguration, err)
	}
	defer f.Close()

	var cfg types.Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to decode config: %v", types.ErrConfiguration, err)
	}

	if err := Finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies defaults and validates the result. It is exported so callers that
// build a Config in code get the same treatment as a file.
func Finalize(cfg *types.Config) error {
	applyDefaults(cfg)

	if _, err := PollInterval(cfg); err != nil {
		return fmt.Errorf("%w: logs.poll_interval: %v", types.ErrConfiguration, err)
	}
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", types.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	return nil
}

// PollInterval returns the tailer idle sleep
func PollInterval(cfg *types.Config) (time.Duration, error) {
	if cfg.Logs.PollInterval == "" {
		return DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(cfg.Logs.PollInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// applyDefaults fills every unset knob
func applyDefaults(cfg *types.Config) {
	bf := &cfg.Detection.BruteForce
	if bf.RequestsThreshold == 0 {
		bf.RequestsThreshold = 20
	}
	if bf.WindowSeconds == 0 {
		bf.WindowSeconds = 2
	}
	if bf.MaxTrackedIPs == 0 {
		bf.MaxTrackedIPs = 5000
	}

	rep := &cfg.Reporting
	if rep.IncidentsDir == "" {
		rep.IncidentsDir = "./reports/incidents"
	}
	rep.Backend = strings.ToLower(rep.Backend)
	if rep.Backend == "" {
		rep.Backend = "file"
	}
	if rep.SQLitePath == "" {
		rep.SQLitePath = "logguardd.db"
	}
	// Unknown levels fall back instead of failing the load
	rep.SeverityMinEmail = string(cfg.AlertThreshold())
	rep.SeverityMinBlock = string(cfg.BlockThreshold())

	smtp := &cfg.Alerting.SMTP
	if smtp.Server == "" {
		smtp.Server = "localhost"
	}
	if smtp.Port == 0 {
		smtp.Port = 25
	}
	if smtp.UsernameEnv == "" {
		smtp.UsernameEnv = "IDS_SMTP_USER"
	}
	if smtp.PasswordEnv == "" {
		smtp.PasswordEnv = "IDS_SMTP_PASSWORD"
	}
	if smtp.TimeoutSeconds == 0 {
		smtp.TimeoutSeconds = 10
	}

	if cfg.Alerting.Webhook.TimeoutSeconds == 0 {
		cfg.Alerting.Webhook.TimeoutSeconds = 5
	}

	resp := &cfg.Response
	if resp.Iptables.Command == "" {
		resp.Iptables.Command = "iptables -A INPUT -s {ip} -j DROP"
	}
	if resp.Fail2ban.Command == "" {
		resp.Fail2ban.Command = "fail2ban-client set {jail} banip {ip}"
	}
	if resp.Executor.Socket == "" {
		resp.Executor.Socket = "/run/logguardd.sock"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
