package types

// BruteForceConfig tunes the per-IP request window detector
type BruteForceConfig struct {
	Enabled           *bool `yaml:"enabled"`
	RequestsThreshold int   `yaml:"requests_threshold" validate:"min=1"`
	WindowSeconds     int   `yaml:"window_seconds" validate:"min=1"`
	MaxTrackedIPs     int   `yaml:"max_tracked_ips" validate:"min=1"`
}

// IsEnabled defaults to true when the key is absent
func (b BruteForceConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// SMTPConfig configures the email alert sink
type SMTPConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Server         string `yaml:"server"`
	Port           int    `yaml:"port" validate:"min=1,max=65535"`
	FromEmail      string `yaml:"from_email" validate:"omitempty,email"`
	ToEmail        string `yaml:"to_email" validate:"omitempty,email"`
	UsernameEnv    string `yaml:"username_env"`
	PasswordEnv    string `yaml:"password_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1"`
}

// WebhookConfig configures the generic webhook alert sink
type WebhookConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1"`
	VerifyTLS      *bool  `yaml:"verify_tls"`
}

// CommandConfig configures a command-template response sink
type CommandConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Jail    string `yaml:"jail"`
	Command string `yaml:"command"`
}

// Config represents the application configuration
type Config struct {
	Logs struct {
		Sources      map[string]string `yaml:"sources"`
		IncludeGlobs []string          `yaml:"include_globs"`
		ExcludeGlobs []string          `yaml:"exclude_globs"`
		PollInterval string            `yaml:"poll_interval"` // idle sleep between empty cycles, e.g. "500ms"
		Poll         *bool             `yaml:"poll"`          // stat polling instead of inotify
	} `yaml:"logs"`

	Detection struct {
		BruteForce BruteForceConfig `yaml:"brute_force"`
		Disabled   []string         `yaml:"disabled"`
	} `yaml:"detection"`

	Reporting struct {
		IncidentsDir     string `yaml:"incidents_dir"`
		Backend          string `yaml:"backend" validate:"oneof=file sqlite"`
		SQLitePath       string `yaml:"sqlite_path"`
		SeverityMinEmail string `yaml:"severity_min_email"`
		SeverityMinBlock string `yaml:"severity_min_block"`
	} `yaml:"reporting"`

	Alerting struct {
		SMTP    SMTPConfig    `yaml:"smtp"`
		Webhook WebhookConfig `yaml:"webhook"`
	} `yaml:"alerting"`

	Response struct {
		ActiveDefense bool          `yaml:"active_defense"` // false = log commands only
		Allowlist     []string      `yaml:"allowlist"`      // never blocked
		Iptables      CommandConfig `yaml:"iptables"`
		Fail2ban      CommandConfig `yaml:"fail2ban"`
		Executor      struct {
			Enabled bool   `yaml:"enabled"`
			Socket  string `yaml:"socket"`
		} `yaml:"executor"`
	} `yaml:"response"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format" validate:"oneof=text json"`
	} `yaml:"logging"`
}

// AlertThreshold is the minimum severity that notifies an operator
func (c *Config) AlertThreshold() Severity {
	return ParseSeverity(c.Reporting.SeverityMinEmail, SeverityMedium)
}

// BlockThreshold is the minimum severity that blocks the offending address
func (c *Config) BlockThreshold() Severity {
	return ParseSeverity(c.Reporting.SeverityMinBlock, SeverityHigh)
}
