package action

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes a command without a shell
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command on the host and folds its output into the error
func ExecRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

const connTimeout = 30 * time.Second

// Executor runs as root and applies ban requests received over a Unix socket.
// Protocol: one "ban <ip>" or "unban <ip>" per line, answered with "ok" or "error: <reason>".
type Executor struct {
	SocketPath string
	run        Runner
	log        logrus.FieldLogger
}

func NewExecutor(socketPath string, run Runner, log logrus.FieldLogger) *Executor {
	if socketPath == "" {
		socketPath = "/run/logguardd.sock"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Executor{SocketPath: socketPath, run: run, log: log}
}

// Serve listens until ctx is cancelled
func (e *Executor) Serve(ctx context.Context) error {
	// Clean up a stale socket from a previous run
	if err := os.Remove(e.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", e.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", e.SocketPath, err)
	}
	defer os.Remove(e.SocketPath)

	// Owner and group only: the analyzer joins the socket's group
	if err := os.Chmod(e.SocketPath, 0660); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	e.log.WithField("socket", e.SocketPath).Info("Executor listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			e.log.WithError(err).Warn("Executor accept error")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.handleConnection(ctx, conn)
		}()
	}
}

func (e *Executor) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply := "ok"
		if err := e.handleLine(ctx, scanner.Text()); err != nil {
			reply = "error: " + err.Error()
		}
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
	}
}

func (e *Executor) handleLine(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return errors.New("expected \"<ban|unban> <ip>\"")
	}
	verb, target := parts[0], parts[1]

	// Final safety check: target MUST be a valid IP
	ip := net.ParseIP(target)
	if ip == nil {
		e.log.WithField("target", target).Warn("Executor rejected invalid target")
		return fmt.Errorf("invalid address %q", target)
	}

	var flag string
	switch verb {
	case "ban":
		flag = "-A"
	case "unban":
		flag = "-D"
	default:
		return fmt.Errorf("unknown action %q", verb)
	}

	entry := e.log.WithFields(logrus.Fields{"action": verb, "ip": ip.String()})
	if err := e.run(ctx, "iptables", flag, "INPUT", "-s", ip.String(), "-j", "DROP"); err != nil {
		entry.WithError(err).Error("Executor command failed")
		return errors.New("command failed")
	}
	entry.Info("Executor applied rule")
	return nil
}
