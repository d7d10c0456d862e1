// Package sockutil wraps a UDP socket behind a small interface so that
// router and host cores can be driven by a fake in the test suite instead
// of real network I/O. It generalizes this codebase's earlier
// connection-oriented socket wrapper to the spec's plain, connectionless
// datagram substrate (spec.md §6).
package sockutil

import (
	"errors"
	"net"
	"net/netip"

	"lsproto.dev/lsproto/internal/assert"
	"lsproto.dev/lsproto/internal/logx"
	"lsproto.dev/lsproto/internal/observer"
)

// receiveBufferSize bounds how many not-yet-processed datagrams are
// queued on the socket's observable before new ones are dropped, matching
// this codebase's original SOCKET_RECEIVE_BUFFER_SIZE constant.
const receiveBufferSize = 1000

// Datagram is a received UDP payload together with its sender.
type Datagram struct {
	From netip.AddrPort
	Data []byte
}

// Socket is the datagram transport contract routers and hosts depend on.
// The spec treats a bound socket as an external collaborator (spec.md §1);
// this interface is the seam at which a test replaces it with a fake.
type Socket interface {
	// LocalAddr returns the address the socket is bound to. Panics if the
	// socket has not been opened.
	LocalAddr() netip.AddrPort

	// SendTo sends data to addr. Open must be called first.
	SendTo(addr netip.AddrPort, data []byte) error

	// Open binds the socket to listenAddr and starts its receive loop.
	Open(listenAddr netip.AddrPort) error

	// Close shuts the socket down. Subscribers are not cleared; they will
	// receive datagrams from any future Open call on the same Socket.
	Close() error

	// Subscribe registers a channel that receives every datagram the
	// socket reads off the wire.
	Subscribe() chan *Datagram
}

// UDPSocket is the production Socket backed by a real net.UDPConn.
type UDPSocket struct {
	conn       *net.UDPConn
	observable *observer.Observable[*Datagram]
}

// NewUDPSocket creates an unopened UDP socket.
func NewUDPSocket() *UDPSocket {
	return &UDPSocket{
		observable: observer.NewObservable[*Datagram](receiveBufferSize),
	}
}

func (s *UDPSocket) LocalAddr() netip.AddrPort {
	assert.IsNotNil(s.conn, "socket is not open")
	addr, ok := s.conn.LocalAddr().(*net.UDPAddr)
	assert.Assert(ok, "unexpected local addr type %T", s.conn.LocalAddr())
	return addr.AddrPort()
}

func (s *UDPSocket) Subscribe() chan *Datagram {
	return s.observable.Subscribe()
}

func (s *UDPSocket) Open(listenAddr netip.AddrPort) error {
	assert.Assert(s.conn == nil, "socket is already open, call Close() first")

	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(listenAddr))
	if err != nil {
		return err
	}

	s.conn = conn
	go s.readLoop()

	return nil
}

func (s *UDPSocket) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, addr, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logx.Warnf("sockutil: read failed: %v", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.observable.NotifyObservers(&Datagram{From: addr, Data: data})
	}
}

func (s *UDPSocket) SendTo(addr netip.AddrPort, data []byte) error {
	assert.IsNotNil(s.conn, "socket is not open")
	_, err := s.conn.WriteToUDPAddrPort(data, addr)
	return err
}

func (s *UDPSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
