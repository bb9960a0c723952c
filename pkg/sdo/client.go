// Package sdo implements a CANopen SDO client: expedited and segmented
// upload (read) and download (write), abort handling, and typed convenience
// wrappers for common object dictionary value types.
package sdo

import (
	"context"
	"fmt"
	"time"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/canlink-go/cankit/pkg/deadline"
	"github.com/canlink-go/cankit/pkg/router"
	"github.com/sirupsen/logrus"
)

const (
	// requestCOBIDBase is added to the node id to get the client->server
	// ("request") CAN identifier, matching the teacher's ClientBaseId.
	requestCOBIDBase uint16 = 0x600
	// responseCOBIDBase is added to the node id to get the server->client
	// ("response") CAN identifier, matching the teacher's ServerBaseId.
	responseCOBIDBase uint16 = 0x580

	// segmentDataSize is the number of payload bytes a single download or
	// upload segment frame carries.
	segmentDataSize = 7
	// expeditedDataSize is the largest payload an expedited transfer can
	// carry in a single initiate frame.
	expeditedDataSize = 4

	// DefaultTimeout mirrors the teacher's DefaultClientTimeout (1 second).
	DefaultTimeout = time.Second
)

// Client performs SDO transfers against a single CANopen node.
type Client struct {
	router  *router.Router
	nodeID  uint8
	timeout time.Duration
	clock   deadline.Clock
	logger  *logrus.Entry
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout. The timeout bounds each Upload or
// Download call as a whole, every segment of a segmented transfer included;
// it is not renewed per request/response round trip.
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

// NewClient returns a Client that talks to nodeID over r.
func NewClient(r *router.Router, nodeID uint8, opts ...Option) *Client {
	c := &Client{
		router:  r,
		nodeID:  nodeID,
		timeout: DefaultTimeout,
		clock:   deadline.RealClock,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("node_id", fmt.Sprintf("0x%02X", nodeID))
	return c
}

func (c *Client) requestID() can.ID {
	id, _ := can.NewStandardCanID(requestCOBIDBase + uint16(c.nodeID))
	return id
}

func (c *Client) responseID() can.ID {
	id, _ := can.NewStandardCanID(responseCOBIDBase + uint16(c.nodeID))
	return id
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return deadline.After(c.clock, c.timeout).Context(ctx)
}

// roundTrip sends payload as a request frame and waits for the next response
// frame from this node's SDO server. Subscribing before sending avoids the
// race of the response arriving before the wait begins.
func (c *Client) roundTrip(ctx context.Context, payload [8]byte) ([8]byte, error) {
	filter := can.NewFilter().MatchExactID(c.responseID())
	ch, cancel := c.router.Subscribe(filter, 1)
	defer cancel()

	frame, err := can.NewFrame(c.requestID(), payload[:])
	if err != nil {
		return [8]byte{}, fmt.Errorf("sdo: build request: %w", err)
	}
	if err := c.router.Send(ctx, frame); err != nil {
		return [8]byte{}, fmt.Errorf("sdo: send: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return [8]byte{}, fmt.Errorf("sdo: subscription canceled before a response arrived")
		}
		var out [8]byte
		copy(out[:], resp.Data())
		return out, nil
	case <-ctx.Done():
		return [8]byte{}, fmt.Errorf("sdo: %w", ctx.Err())
	}
}

// abort tells the server to cancel the in-progress transfer, best-effort
// (its own failure is logged, not returned, matching the original client's
// fire-and-forget abort on error).
func (c *Client) abort(ctx context.Context, index uint16, subIndex uint8, reason AbortReason) {
	data := buildAbortTransferRequest(index, subIndex, reason)
	frame, err := can.NewFrame(c.requestID(), data[:])
	if err != nil {
		return
	}
	if err := c.router.Send(ctx, frame); err != nil {
		c.logger.WithError(err).Debug("sdo: failed to send abort-transfer frame")
	}
}

func isAbortedError(err error) bool {
	_, ok := err.(*AbortedError)
	return ok
}

// Upload reads the value of object (index, subIndex) from the server,
// transparently handling both expedited and segmented transfers.
func (c *Client) Upload(ctx context.Context, index uint16, subIndex uint8) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.WithFields(logrus.Fields{"index": fmt.Sprintf("0x%04X", index), "subindex": subIndex}).
		Debug("sdo: initiate upload")

	req := buildInitiateUploadRequest(index, subIndex)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, segmented, length, err := parseInitiateUploadResponse(resp[:], c.nodeID, index, subIndex)
	if err != nil {
		if !isAbortedError(err) {
			c.abort(ctx, index, subIndex, AbortGeneralError)
		}
		return nil, err
	}
	if !segmented {
		return payload, nil
	}

	data := make([]byte, 0, length)
	toggle := false
	for {
		req := buildSegmentUploadRequest(toggle)
		resp, err := c.roundTrip(ctx, req)
		if err != nil {
			if !isAbortedError(err) {
				c.abort(ctx, index, subIndex, AbortGeneralError)
			}
			return nil, err
		}
		segment, complete, err := parseSegmentUploadResponse(resp[:], toggle, c.nodeID, index, subIndex)
		if err != nil {
			if !isAbortedError(err) {
				c.abort(ctx, index, subIndex, AbortGeneralError)
			}
			return nil, err
		}
		data = append(data, segment...)
		if complete {
			break
		}
		if uint32(len(data)) >= length {
			c.abort(ctx, index, subIndex, AbortGeneralError)
			return nil, &TooManySegmentsError{}
		}
		toggle = !toggle
	}
	if uint32(len(data)) != length {
		c.abort(ctx, index, subIndex, AbortGeneralError)
		return nil, &WrongDataCountError{Expected: int(length), Actual: len(data)}
	}
	return data, nil
}

// Download writes data to object (index, subIndex) on the server,
// transparently handling both expedited and segmented transfers.
func (c *Client) Download(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if len(data) <= expeditedDataSize {
		return c.downloadExpedited(ctx, index, subIndex, data)
	}
	return c.downloadSegmented(ctx, index, subIndex, data)
}

func (c *Client) downloadExpedited(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	req := buildExpeditedDownloadRequest(index, subIndex, data)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if err := checkServerCommand(resp[:], serverInitiateDownload, c.nodeID, index, subIndex); err != nil {
		if !isAbortedError(err) {
			c.abort(ctx, index, subIndex, AbortGeneralError)
		}
		return err
	}
	return nil
}

func (c *Client) downloadSegmented(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	req := buildInitiateSegmentedDownloadRequest(index, subIndex, uint32(len(data)))
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if err := checkServerCommand(resp[:], serverInitiateDownload, c.nodeID, index, subIndex); err != nil {
		if !isAbortedError(err) {
			c.abort(ctx, index, subIndex, AbortGeneralError)
		}
		return err
	}

	chunkCount := (len(data) + segmentDataSize - 1) / segmentDataSize
	toggle := false
	for i := 0; i < chunkCount; i++ {
		start := i * segmentDataSize
		end := start + segmentDataSize
		if end > len(data) {
			end = len(data)
		}
		complete := i+1 == chunkCount
		req := buildSegmentDownloadRequest(toggle, complete, data[start:end])
		resp, err := c.roundTrip(ctx, req)
		if err != nil {
			if !isAbortedError(err) {
				c.abort(ctx, index, subIndex, AbortGeneralError)
			}
			return err
		}
		if err := checkServerCommand(resp[:], serverSegmentDownload, c.nodeID, index, subIndex); err != nil {
			if !isAbortedError(err) {
				c.abort(ctx, index, subIndex, AbortGeneralError)
			}
			return err
		}
		gotToggle := resp[0]&0x10 != 0
		if gotToggle != toggle {
			c.abort(ctx, index, subIndex, AbortGeneralError)
			return &ToggleMismatchError{}
		}
		toggle = !toggle
	}
	return nil
}
