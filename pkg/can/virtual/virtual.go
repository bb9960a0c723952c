// Package virtual provides an in-memory loopback CAN bus for tests: multiple
// Ports attached to the same Bus see each other's frames with no real
// SocketCAN interface required. Grounded on the teacher's TCP-backed virtual
// bus (same publish/subscribe and receive-own-messages shape), adapted to a
// single in-process broker since tests don't need a network round trip.
package virtual

import (
	"context"
	"fmt"
	"sync"

	"github.com/canlink-go/cankit/pkg/can"
)

// Bus is an in-memory broker: every Port opened on the same Bus receives
// every frame any other Port sends.
type Bus struct {
	mu    sync.Mutex
	ports map[*Port]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{ports: make(map[*Port]struct{})}
}

// Port is one endpoint attached to a Bus, analogous to a socketcan.Socket.
type Port struct {
	bus        *Bus
	inbox      chan can.Frame
	receiveOwn bool
	closed     chan struct{}
	closeOnce  sync.Once
}

// Open attaches a new Port to the bus with the given inbox capacity.
func (b *Bus) Open(queueCapacity int) *Port {
	p := &Port{
		bus:    b,
		inbox:  make(chan can.Frame, queueCapacity),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	b.ports[p] = struct{}{}
	b.mu.Unlock()
	return p
}

// Close detaches the port from its bus.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.bus.mu.Lock()
		delete(p.bus.ports, p)
		p.bus.mu.Unlock()
		close(p.closed)
	})
	return nil
}

// SetReceiveOwnMessages mirrors CAN_RAW_RECV_OWN_MSGS: when enabled, frames
// this port sends are also delivered back to itself.
func (p *Port) SetReceiveOwnMessages(enabled bool) {
	p.receiveOwn = enabled
}

// Send delivers frame to every other port on the bus (and to this port too,
// if SetReceiveOwnMessages was enabled). A port whose inbox is full drops
// the frame, mirroring a kernel socket buffer overrun. ctx is accepted (and
// ignored, the operation never blocks) so Port satisfies the same Transport
// shape as an asynchronous socketcan socket.
func (p *Port) Send(_ context.Context, frame can.Frame) error {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	for other := range p.bus.ports {
		if other == p && !p.receiveOwn {
			continue
		}
		select {
		case other.inbox <- frame:
		default:
		}
	}
	return nil
}

// Recv blocks until a frame arrives, the port is closed, or ctx is done.
func (p *Port) Recv(ctx context.Context) (can.Frame, error) {
	select {
	case frame := <-p.inbox:
		return frame, nil
	case <-p.closed:
		return can.Frame{}, fmt.Errorf("virtual: port closed")
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	}
}

// TryRecv returns immediately: ok is false if no frame is queued.
func (p *Port) TryRecv() (frame can.Frame, ok bool) {
	select {
	case frame := <-p.inbox:
		return frame, true
	default:
		return can.Frame{}, false
	}
}
