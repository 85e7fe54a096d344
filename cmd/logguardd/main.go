package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"logguardd/internal/action"
	"logguardd/internal/alerting"
	"logguardd/internal/audit"
	"logguardd/internal/config"
	"logguardd/internal/detect"
	"logguardd/internal/detectors"
	"logguardd/internal/ingest"
	"logguardd/internal/metrics"
	"logguardd/internal/parser"
	"logguardd/internal/pipeline"
	"logguardd/internal/response"
	"logguardd/internal/types"
)

const defaultConfigPath = "/etc/logguardd/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "sources":
		err = sourcesCommand(os.Args[2:])
	case "executor":
		err = executorCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "logguardd: %v\n", err)
		if errors.Is(err, types.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: logguardd <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  run       Tail the configured logs and respond to incidents")
	fmt.Println("  sources   Print the resolved log sources and exit")
	fmt.Println("  executor  Start the privileged executor (requires root)")
}

func newLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func resolveSources(cfg *types.Config, log logrus.FieldLogger) (ingest.SourceMap, error) {
	r := ingest.NewResolver(config.DefaultIncludeGlob, log)
	return r.Resolve(cfg.Logs.Sources, cfg.Logs.IncludeGlobs, cfg.Logs.ExcludeGlobs)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Detectors
	built, err := detect.Build(detectors.Builtin(), detect.Env{Config: cfg, Log: log}, cfg.Detection.Disabled)
	if err != nil {
		return err
	}

	// Report sink
	var reporter action.ReportSink
	switch cfg.Reporting.Backend {
	case "sqlite":
		store, err := audit.NewSQLiteReporter(cfg.Reporting.SQLitePath, log)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		defer store.Close()
		reporter = store
	default:
		files, err := audit.NewFileReporter(cfg.Reporting.IncidentsDir, log)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		reporter = files
	}

	// Alert and response sinks. Disabled sinks stay in the list and no-op.
	alerts := []action.AlertSink{
		alerting.NewSMTP(cfg.Alerting.SMTP, log),
		alerting.NewWebhook(cfg.Alerting.Webhook, log),
	}
	var responders []action.ResponseSink
	if cfg.Response.Executor.Enabled {
		// Privilege separation: the root executor owns the firewall
		responders = append(responders, response.NewSocket(cfg.Response.Executor.Socket, log))
	} else {
		responders = append(responders,
			response.NewIptables(cfg.Response.Iptables, cfg.Response.ActiveDefense, action.ExecRunner, log),
			response.NewFail2ban(cfg.Response.Fail2ban, cfg.Response.ActiveDefense, action.ExecRunner, log),
		)
	}

	policy := action.NewPolicy(
		action.Thresholds{Alert: cfg.AlertThreshold(), Block: cfg.BlockThreshold()},
		cfg.Response.Allowlist, reporter, alerts, responders, log,
	)

	// Sources last, so nothing above leaves file handles open on failure
	sources, err := resolveSources(cfg, log)
	if err != nil {
		return err
	}
	interval, err := config.PollInterval(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	tailer, err := ingest.OpenTailer(sources, ingest.Options{
		PollInterval: interval,
		Poll:         cfg.Logs.Poll != nil && *cfg.Logs.Poll,
	}, log)
	if err != nil {
		return err
	}

	if cfg.Metrics.ListenAddr != "" {
		srv := metrics.NewServer(cfg.Metrics.ListenAddr, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	mode := "safe"
	if cfg.Response.ActiveDefense {
		mode = "active"
	}
	log.WithFields(logrus.Fields{
		"sources":         tailer.Sources(),
		"alert_threshold": cfg.AlertThreshold(),
		"block_threshold": cfg.BlockThreshold(),
		"mode":            mode,
	}).Info("Starting logguardd")

	dispatcher := detect.NewDispatcher(built, log)
	return pipeline.New(tailer, parser.NewNormalizer(), dispatcher, policy, log).Run(ctx)
}

func sourcesCommand(args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	log.SetOutput(os.Stderr)

	sources, err := resolveSources(cfg, log)
	if err != nil {
		return err
	}
	for _, name := range sources.Names() {
		fmt.Printf("%-20s %-9s %s\n", name, parser.KindOf(name), sources[name])
	}
	return nil
}

func executorCommand(args []string) error {
	fs := flag.NewFlagSet("executor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (optional)")
	socketPath := fs.String("socket", "", "Path to the Unix socket (overrides config)")
	fs.Parse(args)

	socket, level, format := "/run/logguardd.sock", "info", "text"
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		socket, level, format = cfg.Response.Executor.Socket, cfg.Logging.Level, cfg.Logging.Format
	}
	if *socketPath != "" {
		socket = *socketPath
	}

	log := newLogger(level, format)
	if os.Geteuid() != 0 {
		log.Warn("Executor is not running as root, iptables calls will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return action.NewExecutor(socket, action.ExecRunner, log).Serve(ctx)
}
