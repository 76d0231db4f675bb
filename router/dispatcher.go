package router

import (
	"context"
	"fmt"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/model"
)

// Dispatcher classifies a message and forwards it to the category's
// responder.
type Dispatcher struct {
	classifier Classifier
	responders map[Category]Responder
	logger     logging.Logger
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Responders overrides or adds per-category responders.
	Responders map[Category]Responder
	Logger     logging.Logger
}

// NewDispatcher creates a dispatcher without default responders; register
// them through DispatcherOptions.Responders.
func NewDispatcher(classifier Classifier, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	responders := make(map[Category]Responder, len(opts.Responders))
	for c, r := range opts.Responders {
		responders[c] = r
	}

	return &Dispatcher{classifier: classifier, responders: responders, logger: opts.Logger}
}

// NewModelDispatcher wires a ModelClassifier and one ModelResponder per
// category (using DefaultPrompts) around m.
func NewModelDispatcher(m model.Model, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	responders := make(map[Category]Responder, len(DefaultPrompts))
	for c, prompt := range DefaultPrompts {
		responders[c] = NewModelResponder(m, prompt, DefaultMaxHistory)
	}

	fns := append([]func(o *DispatcherOptions){func(o *DispatcherOptions) { o.Responders = responders }}, optFns...)

	return NewDispatcher(NewModelClassifier(m), fns...)
}

// Route returns the category for message.
func (d *Dispatcher) Route(ctx context.Context, message string) (Category, error) {
	return d.classifier.Classify(ctx, message)
}

// Respond classifies message and returns the selected responder's reply.
func (d *Dispatcher) Respond(ctx context.Context, key core.CheckpointKey, message string) (string, error) {
	category, err := d.classifier.Classify(ctx, message)
	if err != nil {
		return "", err
	}

	responder, ok := d.responders[category]
	if !ok {
		return "", fmt.Errorf("%w: no responder for service type %q", core.ErrUnknownCapability, category)
	}

	d.logger.Debug("router.dispatch", "category", string(category), "key", key.String())

	return responder.Respond(ctx, key, message)
}
