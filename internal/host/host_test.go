package host

import (
	"net/netip"
	"sync"
	"testing"

	"lsproto.dev/lsproto/internal/sockutil"
	"lsproto.dev/lsproto/internal/wire"
)

type fakeSocket struct {
	mu   sync.Mutex
	sent []wire.Message
	obs  chan *sockutil.Datagram
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{obs: make(chan *sockutil.Datagram, 256)}
}

func (f *fakeSocket) LocalAddr() netip.AddrPort { return netip.AddrPort{} }

func (f *fakeSocket) SendTo(addr netip.AddrPort, data []byte) error {
	msg, err := wire.Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) Open(netip.AddrPort) error              { return nil }
func (f *fakeSocket) Close() error                           { return nil }
func (f *fakeSocket) Subscribe() chan *sockutil.Datagram { return f.obs }

func (f *fakeSocket) lastSent() []wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func routerEP() netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 9000)
}

func newTestHost(id string, sock *fakeSocket, known []string, clock *int64) *Host {
	return New(id, sock, routerEP(), known, func() int64 { return *clock }, nil)
}

func TestStartupBurstSendsDataToKnownHosts(t *testing.T) {
	sock := newFakeSocket()
	var clock int64
	h := newTestHost("H1", sock, []string{"H2", "H3"}, &clock)

	h.startupBurst()

	sent := sock.lastSent()
	if len(sent) != InitialBurst {
		t.Fatalf("expected %d burst datagrams, got %d", InitialBurst, len(sent))
	}
	for _, m := range sent {
		if m.Kind != wire.KindData || m.Source != "H1" {
			t.Fatalf("unexpected burst datagram: %+v", m)
		}
		if m.Destination != "H2" && m.Destination != "H3" {
			t.Fatalf("burst destination must be a known host, got %s", m.Destination)
		}
	}
}

// TestOnDataAcksAndReplies covers spec.md §4.3 operation 2 and the
// round-trip law from spec.md §8.
func TestOnDataAcksAndReplies(t *testing.T) {
	sock := newFakeSocket()
	var clock int64
	h := newTestHost("H1", sock, nil, &clock)

	h.handleDatagram(&sockutil.Datagram{Data: encode(t, wire.Message{
		Kind: wire.KindData, Source: "H9", Destination: "H1", Sequence: 42, Payload: "hi", TTL: 16,
	})})

	sent := sock.lastSent()
	if len(sent) != 2 {
		t.Fatalf("expected one ACK and one reply DATA, got %d", len(sent))
	}

	ack := sent[0]
	if ack.Kind != wire.KindAck || ack.AckSequence != 42 || ack.Destination != "H9" {
		t.Fatalf("unexpected ACK: %+v", ack)
	}
	reply := sent[1]
	if reply.Kind != wire.KindData || reply.Destination != "H9" {
		t.Fatalf("unexpected reply DATA: %+v", reply)
	}
}

// TestOnAckRemovesMatchingPendingRequest covers operation 3.
func TestOnAckRemovesMatchingPendingRequest(t *testing.T) {
	sock := newFakeSocket()
	var clock int64
	h := newTestHost("H1", sock, nil, &clock)

	h.sendData("H7", "hello")
	if h.PendingCount() != 1 {
		t.Fatalf("expected one pending request after send")
	}

	h.handleDatagram(&sockutil.Datagram{Data: encode(t, wire.Message{
		Kind: wire.KindAck, Source: "H7", Destination: "H1", AckSequence: 1,
	})})

	if h.PendingCount() != 0 {
		t.Fatalf("ACK should remove the matching pending request")
	}
}

// TestUnmatchedAckIgnored: a mismatched source must not remove an
// unrelated pending request.
func TestUnmatchedAckIgnored(t *testing.T) {
	sock := newFakeSocket()
	var clock int64
	h := newTestHost("H1", sock, nil, &clock)

	h.sendData("H7", "hello")

	h.handleDatagram(&sockutil.Datagram{Data: encode(t, wire.Message{
		Kind: wire.KindAck, Source: "wrong-sender", Destination: "H1", AckSequence: 1,
	})})

	if h.PendingCount() != 1 {
		t.Fatalf("ACK from an unexpected source must not remove the pending request")
	}
}

// TestRetransmissionBackoffAndAbandonment covers Scenario 4.
func TestRetransmissionBackoffAndAbandonment(t *testing.T) {
	sock := newFakeSocket()
	var clock int64
	var failed bool
	h := New("H1", sock, routerEP(), nil, func() int64 { return clock }, func(dest string, seq uint64) {
		failed = true
		if dest != "H7" || seq != 1 {
			t.Fatalf("unexpected failure report: dest=%s seq=%d", dest, seq)
		}
	})

	h.sendData("H7", "hello") // attempts=1, first_sent=0

	clock = int64(RetryInterval) - 1
	h.scanRetransmissions()
	if h.PendingCount() != 1 || len(sock.lastSent()) != 1 {
		t.Fatalf("must not retransmit before RETRY_INTERVAL elapses")
	}

	clock = int64(RetryInterval) // due: now - 0 >= RETRY_INTERVAL*1
	h.scanRetransmissions()
	if len(sock.lastSent()) != 2 {
		t.Fatalf("expected a retransmission at attempts=2 threshold, got %d sends", len(sock.lastSent()))
	}

	clock = int64(RetryInterval) * 2 // due: now - 0 >= RETRY_INTERVAL*2
	h.scanRetransmissions()
	if len(sock.lastSent()) != 3 {
		t.Fatalf("expected a second retransmission at attempts=3 threshold, got %d sends", len(sock.lastSent()))
	}

	clock = int64(RetryInterval) * 3 // attempts already at MaxAttempts: abandon
	h.scanRetransmissions()
	if h.PendingCount() != 0 {
		t.Fatalf("request must be abandoned once attempts reach MaxAttempts")
	}
	if !failed {
		t.Fatalf("expected the failure reporter to be invoked")
	}
}

func encode(t *testing.T, m wire.Message) []byte {
	t.Helper()
	data, err := wire.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}
