package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"logguardd/internal/types"
)

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

// appendBlock writes all lines with a single write
func appendBlock(t *testing.T, path, prefix string, n int) {
	t.Helper()
	var buf []byte
	for i := 0; i < n; i++ {
		buf = fmt.Appendf(buf, "%s%d\n", prefix, i)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// waitBuffered blocks until every source holds n read-ahead lines
func waitBuffered(t *testing.T, tl *Tailer, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for _, src := range tl.sources {
		for len(src.lines) < n {
			if time.Now().After(deadline) {
				t.Fatalf("source %s buffered %d lines, want %d", src.name, len(src.lines), n)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func collect(t *testing.T, tl *Tailer, n int) []Line {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out []Line
	for len(out) < n {
		line, err := tl.Next(ctx)
		if err != nil {
			t.Fatalf("Next after %d lines: %v", len(out), err)
		}
		out = append(out, line)
	}
	return out
}

func testOptions() Options {
	return Options{PollInterval: 20 * time.Millisecond, Poll: true}
}

func TestTailer_SkipsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	if err := os.WriteFile(path, []byte("old line 1\nold line 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	log, _ := test.NewNullLogger()
	tl, err := OpenTailer(SourceMap{"apache": path}, testOptions(), log)
	if err != nil {
		t.Fatalf("OpenTailer: %v", err)
	}
	defer tl.Close()

	appendLines(t, path, "new line")
	got := collect(t, tl, 1)
	if got[0].Text != "new line" || got[0].Source != "apache" {
		t.Errorf("got %+v, want the appended line", got[0])
	}
}

func TestTailer_MultipleSourcesInFileOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	log, _ := test.NewNullLogger()
	tl, err := OpenTailer(SourceMap{"a": a, "b": b}, testOptions(), log)
	if err != nil {
		t.Fatalf("OpenTailer: %v", err)
	}
	defer tl.Close()

	appendLines(t, a, "a1", "a2", "a3")
	appendLines(t, b, "b1", "b2")

	perSource := map[string][]string{}
	for _, line := range collect(t, tl, 5) {
		perSource[line.Source] = append(perSource[line.Source], line.Text)
	}

	want := map[string][]string{"a": {"a1", "a2", "a3"}, "b": {"b1", "b2"}}
	for src, lines := range want {
		if len(perSource[src]) != len(lines) {
			t.Fatalf("source %s: got %v, want %v", src, perSource[src], lines)
		}
		for i := range lines {
			if perSource[src][i] != lines[i] {
				t.Errorf("source %s line %d = %q, want %q", src, i, perSource[src][i], lines[i])
			}
		}
	}
}

func TestTailer_MissingSourceExcluded(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.log")
	if err := os.WriteFile(present, nil, 0644); err != nil {
		t.Fatal(err)
	}

	log, hook := test.NewNullLogger()
	tl, err := OpenTailer(SourceMap{
		"present": present,
		"missing": filepath.Join(dir, "missing.log"),
	}, testOptions(), log)
	if err != nil {
		t.Fatalf("OpenTailer: %v", err)
	}
	defer tl.Close()

	if got := tl.Sources(); len(got) != 1 || got[0] != "present" {
		t.Errorf("Sources() = %v", got)
	}
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("expected one warning, got %d", warnings)
	}
}

func TestTailer_NoSources(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := OpenTailer(SourceMap{"x": filepath.Join(t.TempDir(), "x.log")}, testOptions(), log)
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestTailer_CancelAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	log, _ := test.NewNullLogger()
	tl, err := OpenTailer(SourceMap{"quiet": path}, testOptions(), log)
	if err != nil {
		t.Fatalf("OpenTailer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := tl.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next on quiet source = %v, want deadline exceeded", err)
	}

	if err := tl.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := tl.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := tl.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next after Close = %v, want ErrClosed", err)
	}
}

func TestTailer_DrainsSourceBeforeMovingOn(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	log, _ := test.NewNullLogger()
	tl, err := OpenTailer(SourceMap{"a": a, "b": b}, testOptions(), log)
	if err != nil {
		t.Fatalf("OpenTailer: %v", err)
	}
	defer tl.Close()

	const n = 200
	appendBlock(t, a, "a", n)
	appendBlock(t, b, "b", n)
	waitBuffered(t, tl, n)

	lines := collect(t, tl, 2*n)
	switches := 0
	for i := 1; i < len(lines); i++ {
		if lines[i].Source != lines[i-1].Source {
			switches++
		}
	}
	if switches != 1 {
		t.Errorf("source switched %d times across %d ready lines, want 1", switches, len(lines))
	}
	for i, line := range lines[:n] {
		if want := fmt.Sprintf("a%d", i); line.Text != want {
			t.Fatalf("line %d = %s/%q, want a/%q", i, line.Source, line.Text, want)
		}
	}
}

func TestTailer_WakesOnNewLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	idle := 2 * time.Second
	log, _ := test.NewNullLogger()
	tl, err := OpenTailer(SourceMap{"busy": path}, Options{PollInterval: idle, Poll: true}, log)
	if err != nil {
		t.Fatalf("OpenTailer: %v", err)
	}
	defer tl.Close()

	const n = 40
	appendBlock(t, path, "req", n)

	ctx, cancel := context.WithTimeout(context.Background(), idle-500*time.Millisecond)
	defer cancel()
	for i := 0; i < n; i++ {
		line, err := tl.Next(ctx)
		if err != nil {
			t.Fatalf("Next after %d lines: %v", i, err)
		}
		if want := fmt.Sprintf("req%d", i); line.Text != want {
			t.Fatalf("line %d = %q, want %q", i, line.Text, want)
		}
	}
}
