package socketcan

import (
	"fmt"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Options configures a Socket at Open time. The zero value opens a plain,
// blocking socket with kernel-default loopback/receive-own-messages
// behavior and no filters installed.
type Options struct {
	// Nonblocking sets O_NONBLOCK on the underlying fd. Async sockets (see
	// async.go) always set this regardless of the field's value.
	Nonblocking bool
	// Loopback overrides CAN_RAW_LOOPBACK when non-nil.
	Loopback *bool
	// ReceiveOwnMessages overrides CAN_RAW_RECV_OWN_MSGS when non-nil.
	ReceiveOwnMessages *bool
	// Filters, if non-empty, is installed via CAN_RAW_FILTER at open time.
	Filters []can.Filter
	// Logger defaults to logrus.StandardLogger() wrapped in a fresh Entry.
	Logger *logrus.Entry
}

// Socket is a synchronous raw CAN_RAW socket bound to one interface, or to
// every interface when opened with OpenAll.
type Socket struct {
	fd     int
	iface  can.Interface
	logger *logrus.Entry
}

// Open binds a new raw CAN socket to the named interface.
func Open(name string, opts Options) (*Socket, error) {
	fd, err := newRawSocket(opts.Nonblocking)
	if err != nil {
		return nil, err
	}

	iface, err := ResolveInterface(fd, name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index()}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind %s: %w", name, err)
	}

	return newSocket(fd, iface, opts)
}

// OpenAll binds a new raw CAN socket across every CAN interface on the host
// (spec §6.1's "bind all" index-0 wildcard). Frames from any interface are
// delivered; use RecvFrom to learn which one a frame arrived on, and SendTo
// to pick the outgoing interface per send.
func OpenAll(opts Options) (*Socket, error) {
	fd, err := newRawSocket(opts.Nonblocking)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: can.AllInterfaces.Index()}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind all interfaces: %w", err)
	}
	return newSocket(fd, can.AllInterfaces, opts)
}

func newRawSocket(nonblocking bool) (int, error) {
	typ := unix.SOCK_RAW | unix.SOCK_CLOEXEC
	if nonblocking {
		typ |= unix.SOCK_NONBLOCK
	}
	fd, err := unix.Socket(unix.AF_CAN, typ, unix.CAN_RAW)
	if err != nil {
		return -1, fmt.Errorf("socketcan: open raw socket: %w", err)
	}
	return fd, nil
}

func newSocket(fd int, iface can.Interface, opts Options) (*Socket, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Socket{fd: fd, iface: iface, logger: logger.WithField("can_interface", iface.String())}

	if opts.Loopback != nil {
		if err := s.SetLoopback(*opts.Loopback); err != nil {
			s.Close()
			return nil, err
		}
	}
	if opts.ReceiveOwnMessages != nil {
		if err := s.SetReceiveOwnMessages(*opts.ReceiveOwnMessages); err != nil {
			s.Close()
			return nil, err
		}
	}
	if len(opts.Filters) > 0 {
		if err := s.SetFilters(opts.Filters); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.logger.Debug("socketcan: socket opened")
	return s, nil
}

// Fd returns the underlying file descriptor.
func (s *Socket) Fd() int { return s.fd }

// Interface returns the interface this socket is bound to (the zero
// can.Interface, AllInterfaces, when opened via OpenAll).
func (s *Socket) Interface() can.Interface { return s.iface }

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// Send writes frame to the bound interface. Blocks until the kernel accepts
// it (or returns immediately with EAGAIN on a nonblocking socket).
func (s *Socket) Send(frame can.Frame) error {
	buf, err := frame.MarshalBinary()
	if err != nil {
		return fmt.Errorf("socketcan: send: %w", err)
	}
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		return fmt.Errorf("socketcan: send: %w", err)
	}
	if n != can.WireSize {
		return fmt.Errorf("socketcan: send: short write of %d bytes", n)
	}
	return nil
}

// Recv reads the next frame from the bound interface.
func (s *Socket) Recv() (can.Frame, error) {
	buf := make([]byte, can.WireSize)
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return can.Frame{}, fmt.Errorf("socketcan: recv: %w", err)
	}
	if n != can.WireSize {
		return can.Frame{}, fmt.Errorf("socketcan: recv: short read of %d bytes", n)
	}
	return can.UnmarshalFrame(buf)
}

// SendTo writes frame out through a specific interface; only meaningful on a
// socket opened with OpenAll.
func (s *Socket) SendTo(frame can.Frame, iface can.Interface) error {
	buf, err := frame.MarshalBinary()
	if err != nil {
		return fmt.Errorf("socketcan: sendto: %w", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index()}
	if err := unix.Sendto(s.fd, buf, 0, addr); err != nil {
		return fmt.Errorf("socketcan: sendto %s: %w", iface, err)
	}
	return nil
}

// RecvFrom reads the next frame along with the interface it arrived on; only
// meaningful on a socket opened with OpenAll.
func (s *Socket) RecvFrom() (can.Frame, can.Interface, error) {
	buf := make([]byte, can.WireSize)
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return can.Frame{}, can.Interface{}, fmt.Errorf("socketcan: recvfrom: %w", err)
	}
	if n != can.WireSize {
		return can.Frame{}, can.Interface{}, fmt.Errorf("socketcan: recvfrom: short read of %d bytes", n)
	}
	frame, err := can.UnmarshalFrame(buf)
	if err != nil {
		return can.Frame{}, can.Interface{}, err
	}
	iface := can.AllInterfaces
	if addr, ok := from.(*unix.SockaddrCAN); ok {
		iface = can.NewInterface("", addr.Ifindex)
	}
	return frame, iface, nil
}

// SetNonblocking toggles O_NONBLOCK on the underlying fd.
func (s *Socket) SetNonblocking(enabled bool) error {
	if err := unix.SetNonblock(s.fd, enabled); err != nil {
		return fmt.Errorf("socketcan: set nonblocking: %w", err)
	}
	return nil
}

// SetFilters installs filters via CAN_RAW_FILTER, replacing any previously
// installed set. An empty slice reopens the socket to "match nothing"
// (kernel semantics for CAN_RAW_FILTER with a zero-length filter array).
func (s *Socket) SetFilters(filters []can.Filter) error {
	raw := make([]unix.CanFilter, len(filters))
	for i, f := range filters {
		id, mask := f.RawFilter()
		raw[i] = unix.CanFilter{Id: id, Mask: mask}
	}
	s.logger.WithField("count", len(raw)).Debug("socketcan: installing CAN_RAW_FILTER")
	if err := unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, raw); err != nil {
		return fmt.Errorf("socketcan: set filters: %w", err)
	}
	return nil
}

// SetLoopback toggles CAN_RAW_LOOPBACK: whether frames this socket sends are
// also looped back to other local sockets on the same interface.
func (s *Socket) SetLoopback(enabled bool) error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_LOOPBACK, boolToInt(enabled)); err != nil {
		return fmt.Errorf("socketcan: set loopback: %w", err)
	}
	return nil
}

// Loopback reports the current CAN_RAW_LOOPBACK setting.
func (s *Socket) Loopback() (bool, error) {
	v, err := unix.GetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_LOOPBACK)
	if err != nil {
		return false, fmt.Errorf("socketcan: get loopback: %w", err)
	}
	return v != 0, nil
}

// SetReceiveOwnMessages toggles CAN_RAW_RECV_OWN_MSGS: whether this socket
// receives the frames it sends itself (useful in tests).
func (s *Socket) SetReceiveOwnMessages(enabled bool) error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, boolToInt(enabled)); err != nil {
		return fmt.Errorf("socketcan: set receive-own-messages: %w", err)
	}
	return nil
}

// ReceiveOwnMessages reports the current CAN_RAW_RECV_OWN_MSGS setting.
func (s *Socket) ReceiveOwnMessages() (bool, error) {
	v, err := unix.GetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS)
	if err != nil {
		return false, fmt.Errorf("socketcan: get receive-own-messages: %w", err)
	}
	return v != 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
