package response

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"logguardd/internal/action"
)

func TestSocket_BansThroughExecutor(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "x.sock")
	log, _ := test.NewNullLogger()
	runner := &fakeRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- action.NewExecutor(sock, runner.run, log).Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("executor not listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s := NewSocket(sock, log)
	s.Apply(context.Background(), "203.0.113.5")
	s.Apply(context.Background(), "203.0.113.5")

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || runner.calls[0] != "iptables -A INPUT -s 203.0.113.5 -j DROP" {
		t.Errorf("executor calls = %v", runner.calls)
	}
}

func TestSocket_ExecutorDown(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := NewSocket(filepath.Join(t.TempDir(), "missing.sock"), log)
	s.Apply(context.Background(), "203.0.113.5")

	if entry := hook.LastEntry(); entry == nil || entry.Message != "Executor request failed" {
		t.Errorf("expected a logged failure, got %v", entry)
	}
	if s.handled["203.0.113.5"] {
		t.Error("failed ban was recorded as handled")
	}
}
