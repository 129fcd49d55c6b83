package harmony

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// StepStream exposes streaming access to a single step.
type StepStream interface {
	// Next returns the next event, or io.EOF once the step has ended and
	// every event was delivered.
	Next(ctx context.Context) (StepEvent, error)
	// Result blocks until the step ends.
	Result() (StepResult, error)
	// Cancel interrupts the step. Events keep flowing until the end event.
	Cancel()
	// Close cancels the step, discards undelivered events and waits for the
	// runner to exit.
	Close() error
}

type stepStream struct {
	ctx    context.Context
	cancel context.CancelFunc

	events  chan StepEvent
	abandon chan struct{}
	once    sync.Once

	result    StepResult
	resultErr error
	done      chan struct{}
}

// StepStreamed runs a step in the background and returns a stream of its
// deltas and messages. Callback options are ignored; events replace them.
func StepStreamed(parent context.Context, req StepRequest, opts ...StepOption) (StepStream, error) {
	if req.Provider == nil {
		return nil, ErrNoProvider
	}
	cfg := stepConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &stepStream{
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan StepEvent, 64),
		abandon: make(chan struct{}),
		done:    make(chan struct{}),
	}
	cfg.stepEmitter = stepEmitter{
		onDelta:   func(d MessageDelta) { s.emit(StepEvent{Type: StepEventDelta, Delta: d}) },
		onMessage: func(m Message) { s.emit(StepEvent{Type: StepEventMessage, Message: m}) },
	}

	go s.run(req, cfg)
	return s, nil
}

func (s *stepStream) Next(ctx context.Context) (StepEvent, error) {
	select {
	case <-ctx.Done():
		return StepEvent{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return StepEvent{}, io.EOF
		}
		return ev, nil
	}
}

func (s *stepStream) Result() (StepResult, error) {
	<-s.done
	return s.result, s.resultErr
}

func (s *stepStream) Cancel() {
	s.cancel()
}

func (s *stepStream) Close() error {
	s.cancel()
	s.once.Do(func() { close(s.abandon) })
	<-s.done
	return nil
}

func (s *stepStream) run(req StepRequest, cfg stepConfig) {
	defer close(s.events)
	defer s.cancel()

	res, err := runStep(s.ctx, req, cfg)
	s.result, s.resultErr = res, err
	close(s.done)
	s.emit(StepEvent{Type: StepEventEnd, Final: res, Err: err})
}

func (s *stepStream) emit(ev StepEvent) {
	select {
	case <-s.abandon:
	case s.events <- ev:
	}
}
