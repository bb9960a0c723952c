// Package router demultiplexes frames from a single transport to many
// consumers by filter, the same job the teacher's root-level BusManager does
// for CANopen object dictionary indices, generalized to arbitrary filters and
// to one-shot as well as streaming subscriptions.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/sirupsen/logrus"
)

// Transport is whatever the Router reads frames from and writes frames to:
// a socketcan.AsyncSocket, a virtual.Port, or any test double with the same
// shape.
type Transport interface {
	Send(ctx context.Context, frame can.Frame) error
	Recv(ctx context.Context) (can.Frame, error)
}

type subscription struct {
	id       uint64
	filter   can.Filter
	queue    chan can.Frame
	oneShot  bool
	canceled bool
}

// Router reads frames from a Transport on a background goroutine and
// dispatches each one to every subscription whose filter matches it.
type Router struct {
	transport Transport
	logger    *logrus.Entry

	mu      sync.Mutex
	subs    map[uint64]*subscription
	nextID  uint64
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	recvErr error
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithLogger overrides the default logrus.StandardLogger()-derived entry.
func WithLogger(logger *logrus.Entry) Option {
	return func(r *Router) { r.logger = logger }
}

// New creates a Router reading from transport. Call Start to begin pumping
// frames; Router is otherwise inert (Send still works without Start, since
// sending doesn't need the dispatch loop).
func New(transport Transport, opts ...Option) *Router {
	r := &Router{
		transport: transport,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
		subs:      make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background dispatch loop. Calling Start twice is a no-op.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.dispatchLoop(loopCtx)
}

// Stop ends the dispatch loop and closes every pending subscription's queue.
func (r *Router) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()

	r.mu.Lock()
	for _, sub := range r.subs {
		close(sub.queue)
	}
	r.subs = make(map[uint64]*subscription)
	r.mu.Unlock()
}

func (r *Router) dispatchLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		frame, err := r.transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.WithError(err).Warn("router: receive failed, stopping dispatch")
			r.deliverError(err)
			return
		}
		r.dispatch(frame)
	}
}

// deliverError records the fatal transport error and delivers it to every
// live subscription by closing its queue, so no waiting Recv or Subscribe
// consumer blocks forever on a dead transport.
func (r *Router) deliverError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recvErr = err
	for id, sub := range r.subs {
		if sub.canceled {
			continue
		}
		close(sub.queue)
		sub.canceled = true
		delete(r.subs, id)
	}
}

func (r *Router) dispatch(frame can.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		if sub.canceled || !sub.filter.Test(frame) {
			continue
		}
		select {
		case sub.queue <- frame:
		default:
			r.logger.WithField("sub_id", id).Warn("router: subscriber queue full, dropping subscription")
			close(sub.queue)
			sub.canceled = true
			delete(r.subs, id)
			continue
		}
		if sub.oneShot {
			close(sub.queue)
			sub.canceled = true
			delete(r.subs, id)
		}
	}
}

// Send writes frame out through the transport.
func (r *Router) Send(ctx context.Context, frame can.Frame) error {
	return r.transport.Send(ctx, frame)
}

// Subscribe registers a streaming subscription: every frame matching filter
// is pushed onto the returned channel (capacity queueCapacity) until cancel
// is called. Dispatch never blocks on a full queue: a frame that does not fit
// ends the subscription, closing the channel.
func (r *Router) Subscribe(filter can.Filter, queueCapacity int) (ch <-chan can.Frame, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	sub := &subscription{id: id, filter: filter, queue: make(chan can.Frame, queueCapacity)}
	r.subs[id] = sub

	cancel = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.subs[id]; ok && !existing.canceled {
			existing.canceled = true
			close(existing.queue)
			delete(r.subs, id)
		}
	}
	return sub.queue, cancel
}

// Recv waits for a single frame matching filter, or until ctx is done.
func (r *Router) Recv(ctx context.Context, filter can.Filter) (can.Frame, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	sub := &subscription{id: id, filter: filter, queue: make(chan can.Frame, 1), oneShot: true}
	r.subs[id] = sub
	r.mu.Unlock()

	select {
	case frame, ok := <-sub.queue:
		if !ok {
			return can.Frame{}, fmt.Errorf("router: subscription canceled before a matching frame arrived")
		}
		return frame, nil
	case <-ctx.Done():
		r.mu.Lock()
		if existing, ok := r.subs[id]; ok && !existing.canceled {
			existing.canceled = true
			delete(r.subs, id)
		}
		r.mu.Unlock()
		return can.Frame{}, ctx.Err()
	}
}
