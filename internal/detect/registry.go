package detect

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"logguardd/internal/types"
)

// ErrDisabled is returned by a factory whose detector is switched off in configuration.
// Build skips it at info level instead of reporting a construction failure.
var ErrDisabled = errors.New("detector disabled")

// Evaluator is the evaluation capability every detector shape reduces to.
// A nil incident with a nil error means no match.
type Evaluator interface {
	Evaluate(evt *types.Event) (*types.Incident, error)
}

// Initializer is implemented by constructible objects that need setup before use
type Initializer interface {
	Init() error
}

// EvaluateFunc adapts a plain function to Evaluator
type EvaluateFunc func(evt *types.Event) (*types.Incident, error)

func (f EvaluateFunc) Evaluate(evt *types.Event) (*types.Incident, error) {
	return f(evt)
}

// Detector is the uniform contract the Dispatcher runs
type Detector interface {
	Name() string
	Evaluator
}

// Env is the process-scoped context handed to configuration-aware factories
type Env struct {
	Config *types.Config
	Log    logrus.FieldLogger
}

// Definition describes one detector in whichever shape it was written.
// Exactly one construction path is attempted, in the order Func, Factory, New, Object.
type Definition struct {
	Name    string
	Func    EvaluateFunc
	Factory func(env Env) (Evaluator, error)
	New     func() (Evaluator, error)
	Object  Evaluator
}

type namedDetector struct {
	name string
	Evaluator
}

func (d namedDetector) Name() string { return d.name }

// Build constructs every definition that is not listed in disabled.
// A definition that fails to construct is logged and skipped; an empty result is a
// configuration error.
func Build(defs []Definition, env Env, disabled []string) ([]Detector, error) {
	log := env.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[def.Name] = true
	}
	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		if !known[name] && !skip[name] {
			log.WithField("detector", name).Warn("Disabled detector name matches no detector")
		}
		skip[name] = true
	}

	var out []Detector
	for _, def := range defs {
		entry := log.WithField("detector", def.Name)
		if skip[def.Name] {
			entry.Info("Detector disabled by configuration")
			continue
		}

		ev, err := construct(def, env)
		if errors.Is(err, ErrDisabled) {
			entry.Info("Detector disabled by configuration")
			continue
		}
		if err != nil {
			entry.WithError(err).Error("Failed to construct detector, skipping")
			continue
		}
		out = append(out, namedDetector{name: def.Name, Evaluator: ev})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no detector could be constructed", types.ErrConfiguration)
	}

	names := make([]string, len(out))
	for i, d := range out {
		names[i] = d.Name()
	}
	log.WithField("detectors", names).Infof("Loaded %d detectors", len(out))
	return out, nil
}

func construct(def Definition, env Env) (ev Evaluator, err error) {
	if def.Name == "" {
		return nil, errors.New("definition has no name")
	}

	defer func() {
		if r := recover(); r != nil {
			ev, err = nil, fmt.Errorf("panic during construction: %v", r)
		}
	}()

	switch {
	case def.Func != nil:
		ev = def.Func
	case def.Factory != nil:
		ev, err = def.Factory(env)
	case def.New != nil:
		ev, err = def.New()
	case def.Object != nil:
		ev = def.Object
		if in, ok := def.Object.(Initializer); ok {
			err = in.Init()
		}
	default:
		return nil, errors.New("definition has no construction shape")
	}

	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, errors.New("construction returned no evaluator")
	}
	return ev, nil
}
