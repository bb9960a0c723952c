// Package nmt implements a CANopen NMT client: it sends network management
// commands (start, stop, enter pre-operational, reset) to a node and
// confirms the state transition by watching that node's heartbeat.
package nmt

import (
	"context"
	"fmt"
	"time"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/canlink-go/cankit/pkg/deadline"
	"github.com/canlink-go/cankit/pkg/router"
	"github.com/sirupsen/logrus"
)

// nmtCOBID is the single CAN identifier every NMT command frame is sent on;
// node_id travels in the payload, not the identifier, per CiA 301 §7.2.8.3.1.
const nmtCOBID uint16 = 0x000

// heartbeatBaseID is added to a node id to get that node's heartbeat
// (CiA 301 calls this "Error Control") CAN identifier.
const heartbeatBaseID uint16 = 0x700

// DefaultTimeout is the default wait for a node's heartbeat to confirm an
// NMT command took effect.
const DefaultTimeout = time.Second

// State is the NMT state a CANopen device reports in its heartbeat.
type State uint8

const (
	StateInitializing  State = 0x00
	StateStopped       State = 0x04
	StateOperational   State = 0x05
	StatePreOperational State = 0x7F
)

var stateNames = map[State]string{
	StateInitializing:   "initializing",
	StateStopped:        "stopped",
	StateOperational:    "operational",
	StatePreOperational: "pre-operational",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", uint8(s))
}

// Command is an NMT command a client can send to a node.
type Command uint8

const (
	CommandStart               Command = 1
	CommandStop                Command = 2
	CommandEnterPreOperational Command = 128
	CommandReset               Command = 129
	CommandResetCommunication  Command = 130
)

var commandNames = map[Command]string{
	CommandStart:               "start",
	CommandStop:                "stop",
	CommandEnterPreOperational: "go-to-pre-operational",
	CommandReset:               "reset",
	CommandResetCommunication:  "reset-communication",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", uint8(c))
}

// expectedState is the state a node should report after successfully
// executing command.
func (c Command) expectedState() State {
	switch c {
	case CommandStart:
		return StateOperational
	case CommandStop:
		return StateStopped
	case CommandEnterPreOperational:
		return StatePreOperational
	default:
		return StateInitializing
	}
}

// UnexpectedStateError reports that a node's post-command heartbeat reported
// a state other than the one the command should have produced.
type UnexpectedStateError struct {
	Command  Command
	Expected State
	Actual   State
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("nmt: %s: expected node to reach state %s, got %s", e.Command, e.Expected, e.Actual)
}

// MalformedHeartbeatError reports a heartbeat frame that doesn't carry
// exactly one data byte.
type MalformedHeartbeatError struct {
	Length int
}

func (e *MalformedHeartbeatError) Error() string {
	return fmt.Sprintf("nmt: malformed heartbeat frame: %d data bytes, want 1", e.Length)
}

// Client sends NMT commands to CANopen nodes and watches their heartbeats.
type Client struct {
	router  *router.Router
	timeout time.Duration
	clock   deadline.Clock
	logger  *logrus.Entry
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout for SendCommand's state-confirmation wait.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithClock overrides deadline.RealClock; tests use a deadline.FakeClock.
func WithClock(clock deadline.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithLogger overrides the default logrus.StandardLogger()-derived entry.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns an NMT client sending commands and watching heartbeats
// over r.
func NewClient(r *router.Router, opts ...Option) *Client {
	c := &Client{
		router:  r,
		timeout: DefaultTimeout,
		clock:   deadline.RealClock,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func heartbeatID(nodeID uint8) (can.ID, error) {
	return can.NewStandardCanID(heartbeatBaseID + uint16(nodeID))
}

// SendCommand sends command to nodeID and blocks until that node's heartbeat
// reports the state the command should produce, or the client's timeout
// elapses. nodeID 0 broadcasts the command to every node on the bus; in that
// case SendCommand sends the frame but does not wait for a heartbeat, since
// no single node's heartbeat identifies the broadcast's outcome.
func (c *Client) SendCommand(ctx context.Context, nodeID uint8, command Command) error {
	frame, err := can.NewFrame(mustStandardID(nmtCOBID), []byte{uint8(command), nodeID})
	if err != nil {
		return fmt.Errorf("nmt: build command frame: %w", err)
	}

	if nodeID == 0 {
		if err := c.router.Send(ctx, frame); err != nil {
			return fmt.Errorf("nmt: send broadcast command: %w", err)
		}
		return nil
	}

	hbID, err := heartbeatID(nodeID)
	if err != nil {
		return fmt.Errorf("nmt: %w", err)
	}
	filter := can.NewFilter().MatchExactID(hbID)
	ch, cancel := c.router.Subscribe(filter, 4)
	defer cancel()

	c.logger.WithFields(logrus.Fields{"node_id": fmt.Sprintf("0x%02X", nodeID), "command": command}).
		Debug("nmt: send command")

	if err := c.router.Send(ctx, frame); err != nil {
		return fmt.Errorf("nmt: send command: %w", err)
	}

	waitCtx, waitCancel := deadline.After(c.clock, c.timeout).Context(ctx)
	defer waitCancel()

	expected := command.expectedState()
	for {
		select {
		case hb, ok := <-ch:
			if !ok {
				return fmt.Errorf("nmt: heartbeat subscription canceled before node reached the expected state")
			}
			state, err := parseHeartbeat(hb)
			if err != nil {
				return err
			}
			if state == expected {
				return nil
			}
			if state != StateInitializing {
				return &UnexpectedStateError{Command: command, Expected: expected, Actual: state}
			}
			// Still initializing; keep waiting for the terminal state.
		case <-waitCtx.Done():
			return fmt.Errorf("nmt: %w", waitCtx.Err())
		}
	}
}

// WaitForState blocks until nodeID's heartbeat reports want, or ctx is done.
func (c *Client) WaitForState(ctx context.Context, nodeID uint8, want State) error {
	hbID, err := heartbeatID(nodeID)
	if err != nil {
		return fmt.Errorf("nmt: %w", err)
	}
	filter := can.NewFilter().MatchExactID(hbID)
	ch, cancel := c.router.Subscribe(filter, 4)
	defer cancel()

	for {
		select {
		case hb, ok := <-ch:
			if !ok {
				return fmt.Errorf("nmt: heartbeat subscription canceled before node reached state %s", want)
			}
			state, err := parseHeartbeat(hb)
			if err != nil {
				return err
			}
			if state == want {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseHeartbeat(frame can.Frame) (State, error) {
	data := frame.Data()
	if len(data) != 1 {
		return 0, &MalformedHeartbeatError{Length: len(data)}
	}
	return State(data[0]), nil
}

func mustStandardID(value uint16) can.ID {
	id, err := can.NewStandardCanID(value)
	if err != nil {
		// value is a package-level constant within range; a failure here is a bug.
		panic(err)
	}
	return id
}
