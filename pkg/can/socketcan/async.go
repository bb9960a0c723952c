package socketcan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/canlink-go/cankit/pkg/can"
	"golang.org/x/sys/unix"
)

// AsyncSocket wraps a nonblocking raw CAN socket in an *os.File so that
// Send/Recv suspend the calling goroutine on the Go runtime's netpoller
// instead of busy-polling or blocking the OS thread — the idiomatic-Go
// analog of a reactor-integrated async socket.
type AsyncSocket struct {
	*Socket
	file *os.File
}

// OpenAsync binds a nonblocking raw CAN socket to the named interface.
func OpenAsync(name string, opts Options) (*AsyncSocket, error) {
	opts.Nonblocking = true
	sock, err := Open(name, opts)
	if err != nil {
		return nil, err
	}
	return newAsyncSocket(sock), nil
}

// OpenAllAsync binds a nonblocking raw CAN socket across every interface.
func OpenAllAsync(opts Options) (*AsyncSocket, error) {
	opts.Nonblocking = true
	sock, err := OpenAll(opts)
	if err != nil {
		return nil, err
	}
	return newAsyncSocket(sock), nil
}

func newAsyncSocket(sock *Socket) *AsyncSocket {
	file := os.NewFile(uintptr(sock.fd), sock.iface.String())
	return &AsyncSocket{Socket: sock, file: file}
}

// Close closes the underlying os.File (which closes the fd once).
func (s *AsyncSocket) Close() error {
	return s.file.Close()
}

// Send writes frame, suspending the calling goroutine until the kernel
// accepts it or ctx is done.
func (s *AsyncSocket) Send(ctx context.Context, frame can.Frame) error {
	buf, err := frame.MarshalBinary()
	if err != nil {
		return fmt.Errorf("socketcan: send: %w", err)
	}
	stop := s.armDeadline(ctx, s.file.SetWriteDeadline)
	defer stop()

	n, err := s.file.Write(buf)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("socketcan: send: %w", err)
	}
	if n != can.WireSize {
		return fmt.Errorf("socketcan: send: short write of %d bytes", n)
	}
	return nil
}

// Recv reads the next frame, suspending the calling goroutine until one
// arrives or ctx is done.
func (s *AsyncSocket) Recv(ctx context.Context) (can.Frame, error) {
	stop := s.armDeadline(ctx, s.file.SetReadDeadline)
	defer stop()

	buf := make([]byte, can.WireSize)
	n, err := s.file.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return can.Frame{}, ctx.Err()
		}
		return can.Frame{}, fmt.Errorf("socketcan: recv: %w", err)
	}
	if n != can.WireSize {
		return can.Frame{}, fmt.Errorf("socketcan: recv: short read of %d bytes", n)
	}
	return can.UnmarshalFrame(buf)
}

// armDeadline sets setDeadline from ctx's deadline (if any) and starts a
// goroutine that forces the deadline as soon as ctx is done, so a context
// cancellation interrupts an in-flight Read/Write. The returned func must be
// called to stop that goroutine once the operation completes.
func (s *AsyncSocket) armDeadline(ctx context.Context, setDeadline func(time.Time) error) func() {
	if deadline, ok := ctx.Deadline(); ok {
		setDeadline(deadline)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			setDeadline(time.Now())
		case <-done:
		}
	}()
	return func() {
		close(done)
		setDeadline(time.Time{})
	}
}

// RecvTimeout is a convenience wrapper around Recv with a relative timeout.
func (s *AsyncSocket) RecvTimeout(d time.Duration) (can.Frame, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Recv(ctx)
}

// SendTimeout is a convenience wrapper around Send with a relative timeout.
func (s *AsyncSocket) SendTimeout(frame can.Frame, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Send(ctx, frame)
}

// TryRecv attempts a single nonblocking read. ok is false (with a nil error)
// when no frame was immediately available.
func (s *AsyncSocket) TryRecv() (frame can.Frame, ok bool, err error) {
	f, err := s.Socket.Recv()
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return can.Frame{}, false, nil
		}
		return can.Frame{}, false, err
	}
	return f, true, nil
}

// TrySend attempts a single nonblocking write. ok is false (with a nil
// error) when the kernel send buffer was full.
func (s *AsyncSocket) TrySend(frame can.Frame) (ok bool, err error) {
	if err := s.Socket.Send(frame); err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
