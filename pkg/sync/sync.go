// Package sync emits CANopen SYNC objects. It has no consumer side: a node
// reacting to SYNC does so through pkg/router and pkg/pdo, not this package.
package sync

import (
	"context"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/canlink-go/cankit/pkg/router"
	"github.com/sirupsen/logrus"
)

// cobID is the standard COB-ID every CANopen network uses for SYNC (CiA 301
// reserves it; it is not configurable per node the way request/response COB-
// IDs are).
const cobID uint16 = 0x080

// maxCounter is the largest value SYNC's optional counter byte may carry.
const maxCounter uint8 = 240

// Client emits SYNC objects onto a network.
type Client struct {
	router *router.Router
	id     can.ID
	logger *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a logger; the default is an entry on logrus.StandardLogger().
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a Client sending SYNC over r.
func NewClient(r *router.Router, opts ...Option) *Client {
	id, err := can.NewStandardCanID(cobID)
	if err != nil {
		panic("sync: cobID is a package-level constant within range")
	}
	c := &Client{
		router: r,
		id:     id,
		logger: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvalidCounterError reports a SYNC counter outside [1, 240].
type InvalidCounterError struct {
	Value uint8
}

func (e *InvalidCounterError) Error() string {
	return "sync: invalid counter value: must be between 1 and 240"
}

// Send emits a SYNC object with no counter byte.
func (c *Client) Send(ctx context.Context) error {
	frame, err := can.NewFrame(c.id, nil)
	if err != nil {
		return err
	}
	c.logger.Debug("sending SYNC")
	return c.router.Send(ctx, frame)
}

// SendWithCounter emits a SYNC object carrying counter, which must be in
// [1, 240].
func (c *Client) SendWithCounter(ctx context.Context, counter uint8) error {
	if counter < 1 || counter > maxCounter {
		return &InvalidCounterError{Value: counter}
	}
	frame, err := can.NewFrame(c.id, []byte{counter})
	if err != nil {
		return err
	}
	c.logger.WithField("counter", counter).Debug("sending SYNC")
	return c.router.Send(ctx, frame)
}
