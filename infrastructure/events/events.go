package events

import (
	"context"
	"errors"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
)

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, model.PostEvent) error { return nil }

// Fanout delivers each event to every sink and joins their errors.
type Fanout []repository.IPostEvents

func (f Fanout) Publish(ctx context.Context, event model.PostEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New picks the cheapest sink that covers the given publishers.
func New(sinks ...repository.IPostEvents) repository.IPostEvents {
	var live Fanout
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return Noop{}
	case 1:
		return live[0]
	}
	return live
}
