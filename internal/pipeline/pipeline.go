package pipeline

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"logguardd/internal/ingest"
	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

// LineSource yields raw lines one at a time; the tailer is the production implementation
type LineSource interface {
	Next(ctx context.Context) (ingest.Line, error)
	Close() error
}

// Normalizer turns a raw line into an Event
type Normalizer interface {
	Normalize(source, line string) *types.Event
}

// Dispatcher runs the detectors over an Event
type Dispatcher interface {
	Dispatch(evt *types.Event) []*types.Incident
}

// IncidentHandler routes incidents to the sinks
type IncidentHandler interface {
	Handle(ctx context.Context, inc *types.Incident)
}

// Pipeline processes one line at a time: normalize, detect, route
type Pipeline struct {
	src        LineSource
	normalizer Normalizer
	dispatcher Dispatcher
	handler    IncidentHandler
	log        logrus.FieldLogger
}

func New(src LineSource, n Normalizer, d Dispatcher, h IncidentHandler, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{src: src, normalizer: n, dispatcher: d, handler: h, log: log}
}

// Run consumes the source until ctx is cancelled or the source fails. The source is
// closed on every exit path. Cancellation is a clean stop and returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	defer func() {
		if cerr := p.src.Close(); cerr != nil {
			p.log.WithError(cerr).Warn("Error while closing log sources")
		}
	}()

	for {
		line, err := p.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				p.log.Info("Pipeline stopped")
				return nil
			}
			return err
		}
		p.Process(ctx, line)
	}
}

// Process handles a single line synchronously
func (p *Pipeline) Process(ctx context.Context, line ingest.Line) {
	evt := p.normalizer.Normalize(line.Source, line.Text)
	metrics.EventsProcessed.WithLabelValues(line.Source).Inc()

	for _, inc := range p.dispatcher.Dispatch(evt) {
		p.handler.Handle(ctx, inc)
	}
}
