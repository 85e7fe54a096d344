package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"

	"logguardd/internal/types"
)

// ErrClosed is returned by Next once the tailer has been closed. A closed tailer
// cannot be restarted; open a new one instead.
var ErrClosed = errors.New("tailer closed")

// Line represents a raw line from a log source
type Line struct {
	Source string
	Text   string
	Time   time.Time // wall clock when the line was read
}

// Options tune the polling loop
type Options struct {
	// PollInterval is slept after a cycle that produced no line from any source
	PollInterval time.Duration
	// Poll makes the underlying tails stat the files instead of using inotify
	Poll bool
}

// lineBuffer is how many read-ahead lines each source may hold
const lineBuffer = 4096

type tailedSource struct {
	name  string
	path  string
	t     *tail.Tail
	lines chan Line // filled by forward, closed when the tail stops
}

// Tailer follows every source of a SourceMap from its end-of-file and hands out
// lines one at a time. Each cycle visits every source once and drains whatever it
// has buffered before moving to the next one.
type Tailer struct {
	sources []*tailedSource
	idle    time.Duration
	log     logrus.FieldLogger

	ready chan struct{} // signalled whenever a source buffers a line
	stop  chan struct{}
	wg    sync.WaitGroup

	pending []Line
	pos     int
	closed  bool
}

// OpenTailer starts a tail for every source. Sources that cannot be opened are
// logged and left out; if none can be opened the error wraps types.ErrConfiguration.
func OpenTailer(sources SourceMap, opts Options, log logrus.FieldLogger) (*Tailer, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	tl := &Tailer{
		idle:  opts.PollInterval,
		log:   log,
		ready: make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}

	for _, name := range sources.Names() {
		path := sources[name]
		t, err := openAtEnd(path, opts.Poll)
		if err != nil {
			log.WithFields(logrus.Fields{"source": name, "path": path}).WithError(err).
				Warn("Failed to open log source, excluding it")
			continue
		}
		src := &tailedSource{name: name, path: path, t: t, lines: make(chan Line, lineBuffer)}
		tl.sources = append(tl.sources, src)
		tl.wg.Add(1)
		go tl.forward(src)
		log.WithFields(logrus.Fields{"source": name, "path": path}).Info("Tailing log source")
	}

	if len(tl.sources) == 0 {
		tl.Close()
		return nil, fmt.Errorf("%w: no log source could be opened", types.ErrConfiguration)
	}
	return tl, nil
}

// openAtEnd tails path from its current size so earlier history is never replayed.
// The offset is taken here rather than seeking to io.SeekEnd inside the tail
// goroutine, so lines appended right after open are not lost.
func openAtEnd(path string, poll bool) (*tail.Tail, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	return tail.TailFile(path, tail.Config{
		Location:  &tail.SeekInfo{Offset: info.Size(), Whence: io.SeekStart},
		Follow:    true,
		ReOpen:    false, // rotation is not followed
		MustExist: true,
		Poll:      poll,
		Logger:    tail.DiscardingLogger,
	})
}

// forward moves lines from the tail into the source buffer so a cycle can drain
// everything already read without racing the tail goroutine
func (tl *Tailer) forward(src *tailedSource) {
	defer tl.wg.Done()
	defer close(src.lines)
	for line := range src.t.Lines {
		if line.Err != nil {
			// e.g. an over-long line; keep going with the rest of the file
			tl.log.WithField("source", src.name).WithError(line.Err).Debug("Skipping unreadable line")
			continue
		}
		select {
		case src.lines <- Line{Source: src.name, Text: line.Text, Time: line.Time}:
		case <-tl.stop:
			return
		}
		select {
		case tl.ready <- struct{}{}:
		default:
		}
	}
}

// Sources returns the names of the sources still being tailed
func (tl *Tailer) Sources() []string {
	names := make([]string, 0, len(tl.sources))
	for _, src := range tl.sources {
		names = append(names, src.name)
	}
	return names
}

// Next blocks until a line is available, ctx is done, or every source has stopped.
// Lines of one source are returned in file order.
func (tl *Tailer) Next(ctx context.Context) (Line, error) {
	for {
		if tl.pos < len(tl.pending) {
			line := tl.pending[tl.pos]
			tl.pos++
			return line, nil
		}
		tl.pending = tl.pending[:0]
		tl.pos = 0

		if tl.closed {
			return Line{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Line{}, err
		}

		n, err := tl.cycle()
		if err != nil {
			return Line{}, err
		}
		if n > 0 {
			continue
		}

		// Idle: wait for the next buffered line, at most one poll interval
		timer := time.NewTimer(tl.idle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Line{}, ctx.Err()
		case <-tl.ready:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// cycle visits every source once and returns how many lines it queued
func (tl *Tailer) cycle() (int, error) {
	if len(tl.sources) == 0 {
		return 0, fmt.Errorf("%w: all log sources stopped", types.ErrConfiguration)
	}

	n := 0
	for i := 0; i < len(tl.sources); {
		src := tl.sources[i]
		got, alive := tl.drain(src)
		n += got
		if !alive {
			tl.log.WithFields(logrus.Fields{"source": src.name, "path": src.path}).
				WithError(src.t.Err()).Warn("Log source stopped, excluding it")
			src.t.Cleanup()
			tl.sources = append(tl.sources[:i], tl.sources[i+1:]...)
			continue
		}
		i++
	}
	return n, nil
}

// drain queues every line the source has buffered without waiting for more
func (tl *Tailer) drain(src *tailedSource) (int, bool) {
	n := 0
	for {
		select {
		case line, ok := <-src.lines:
			if !ok {
				return n, false
			}
			tl.pending = append(tl.pending, line)
			n++
		default:
			return n, true
		}
	}
}

// Close stops every tail and releases its file handle. It is safe to call more than once.
func (tl *Tailer) Close() error {
	if tl.closed {
		return nil
	}
	tl.closed = true
	close(tl.stop)

	var errs []error
	for _, src := range tl.sources {
		if err := src.t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", src.name, err))
		}
		src.t.Cleanup()
	}
	tl.wg.Wait()
	tl.sources = nil
	return errors.Join(errs...)
}
