package backend

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/randr"
)

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("backend: loop stopped")

// EventSource is the X connection's event pump.
type EventSource interface {
	OnScreenChange(fn func(randr.ScreenChange))
	Ping() (before, after, quit chan struct{})
	Quit()
}

// Loop owns the X connection. Event handlers and requests submitted with
// Do never run at the same time.
type Loop struct {
	source   EventSource
	logger   *zap.Logger
	requests chan func()
	done     chan struct{}
}

// NewLoop routes screen change events from source to handle.
func NewLoop(source EventSource, handle func(randr.ScreenChange), logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	source.OnScreenChange(handle)
	return &Loop{
		source:   source,
		logger:   logger,
		requests: make(chan func()),
		done:     make(chan struct{}),
	}
}

// Run serves events and requests until ctx is done or the event loop quits.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	before, after, quit := l.source.Ping()
	for {
		select {
		case <-before:
			<-after
		case fn := <-l.requests:
			fn()
		case <-quit:
			l.logger.Info("event loop exited")
			return nil
		case <-ctx.Done():
			l.source.Quit()
			go drain(before, after, quit)
			return ctx.Err()
		}
	}
}

// drain keeps the event pump from blocking on its ping channels after Run
// has returned. Quit only takes effect once the pump wakes up for the next
// event, which it still announces.
func drain(before, after, quit chan struct{}) {
	for {
		select {
		case <-before:
			<-after
		case <-quit:
			return
		}
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.requests <- wrapped:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
