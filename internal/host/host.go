// Package host implements the host core: the startup traffic burst and
// the reliable request/ACK protocol with bounded retransmission
// (spec.md §4.3). It is grounded on this codebase's original
// sequencing.OutgoingPktNumHandler (per-peer mutex-protected pending-ack
// table, attempts counter, resend callback) but replaces its TCP-style
// congestion window with the fixed backoff the spec mandates —
// congestion control is an explicit non-goal.
package host

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/colorstring"

	"lsproto.dev/lsproto/internal/assert"
	"lsproto.dev/lsproto/internal/logx"
	"lsproto.dev/lsproto/internal/sockutil"
	"lsproto.dev/lsproto/internal/wire"
)

const (
	// InitialBurst is the number of DATA datagrams sent at startup.
	InitialBurst = 100
	// RetryInterval is the base retransmission backoff unit (spec.md §4.3).
	RetryInterval = 5 * time.Second
	// MaxAttempts bounds how many times a request is (re)sent before it
	// is abandoned.
	MaxAttempts = 3
	// scanPeriod is the retransmission scanner cadence; spec.md §4.3
	// requires it to run at least once per second.
	scanPeriod = 500 * time.Millisecond
)

// FailureReporter is the observability hook a host reports abandoned
// requests through (spec.md §4.3 operation 4, §7).
type FailureReporter func(destination string, sequence uint64)

// pendingRequest is the host-local record from spec.md §3.
type pendingRequest struct {
	sequence        uint64
	destination     string
	payload         string
	firstSentNs     int64
	attempts        int
}

// Host owns a single node's pending-request table and local sequence
// counter, both mutated only under mu (spec.md §5).
type Host struct {
	id            string
	socket        sockutil.Socket
	routerAddr    netip.AddrPort
	knownHosts    []string
	now           func() int64
	onFailure     FailureReporter

	mu       sync.Mutex
	pending  map[uint64]*pendingRequest
	localSeq uint64
}

// New creates a Host for node id, sending all traffic through router, a
// set of known peer host IDs to pick random burst destinations from, and
// a clock (monotonic nanoseconds). onFailure may be nil.
func New(id string, socket sockutil.Socket, router netip.AddrPort, knownHosts []string, now func() int64, onFailure FailureReporter) *Host {
	if onFailure == nil {
		onFailure = func(string, uint64) {}
	}
	return &Host{
		id:         id,
		socket:     socket,
		routerAddr: router,
		knownHosts: knownHosts,
		now:        now,
		onFailure:  onFailure,
		pending:    make(map[uint64]*pendingRequest),
	}
}

// Run starts the startup burst, the datagram receive loop, and the
// retransmission scanner, until stop is closed. It blocks; callers run it
// in its own goroutine.
func (h *Host) Run(stop <-chan struct{}) {
	datagrams := h.socket.Subscribe()

	go h.startupBurst()

	scanner := time.NewTicker(scanPeriod)
	defer scanner.Stop()

	for {
		select {
		case <-stop:
			return
		case dg := <-datagrams:
			h.handleDatagram(dg)
		case <-scanner.C:
			h.scanRetransmissions()
		}
	}
}

// startupBurst is spec.md §4.3 operation 1: send InitialBurst DATA
// datagrams to uniformly random known hosts.
func (h *Host) startupBurst() {
	if len(h.knownHosts) == 0 {
		return
	}
	for i := 0; i < InitialBurst; i++ {
		dest := h.knownHosts[rand.IntN(len(h.knownHosts))]
		h.sendData(dest, fmt.Sprintf("burst-%d", i))
	}
}

// handleDatagram dispatches a received datagram by kind.
func (h *Host) handleDatagram(dg *sockutil.Datagram) {
	msg, err := wire.Decode(dg.Data)
	if err != nil {
		logx.Debugf("host %s: dropping malformed datagram: %v", h.id, err)
		return
	}

	switch msg.Kind {
	case wire.KindData:
		h.onData(msg)
	case wire.KindAck:
		h.onAck(msg)
	default:
		// HELLO and any other kind carry no host-protocol semantics here.
	}
}

// onData is spec.md §4.3 operation 2: ACK the sender, then send a fresh
// response DATA back to them.
func (h *Host) onData(msg wire.Message) {
	ack := wire.Message{Kind: wire.KindAck, Source: h.id, Destination: msg.Source, AckSequence: msg.Sequence}
	h.sendToRouter(ack)

	h.sendData(msg.Source, "reply-to-"+msg.Payload)
}

// onAck is spec.md §4.3 operation 3: remove the matching pending request.
// Unmatched ACKs (wrong sequence, unknown destination, or both) are
// ignored.
func (h *Host) onAck(msg wire.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	req, ok := h.pending[msg.AckSequence]
	if !ok || req.destination != msg.Source {
		return
	}
	delete(h.pending, msg.AckSequence)
}

// sendData originates a new outbound DATA request and registers it as
// pending.
func (h *Host) sendData(destination, payload string) {
	h.mu.Lock()
	h.localSeq++
	seq := h.localSeq
	h.pending[seq] = &pendingRequest{
		sequence: seq, destination: destination, payload: payload,
		firstSentNs: h.now(), attempts: 1,
	}
	h.mu.Unlock()

	h.transmit(seq, destination, payload)
}

func (h *Host) transmit(sequence uint64, destination, payload string) {
	msg := wire.Message{
		Kind: wire.KindData, Source: h.id, Destination: destination,
		Sequence: sequence, Payload: payload, TTL: wire.InitialTTL,
	}
	h.sendToRouter(msg)
}

func (h *Host) sendToRouter(msg wire.Message) {
	encoded, err := wire.Encode(msg)
	if err != nil {
		assert.Never("encoding a well-formed host message failed: %v", err)
	}
	if err := h.socket.SendTo(h.routerAddr, encoded); err != nil {
		logx.Warnf("host %s: send to router failed: %v", h.id, err)
	}
}

// scanRetransmissions is spec.md §4.3 operation 4: retransmit any request
// whose backoff has elapsed, and abandon requests that have exhausted
// MaxAttempts.
func (h *Host) scanRetransmissions() {
	now := h.now()

	var toRetransmit []*pendingRequest
	var toAbandon []*pendingRequest

	h.mu.Lock()
	for seq, req := range h.pending {
		due := now-req.firstSentNs >= int64(RetryInterval)*int64(req.attempts)
		if !due {
			continue
		}
		if req.attempts >= MaxAttempts {
			toAbandon = append(toAbandon, req)
			delete(h.pending, seq)
			continue
		}
		req.attempts++
		toRetransmit = append(toRetransmit, req)
	}
	h.mu.Unlock()

	for _, req := range toRetransmit {
		logx.Debugf("host %s: retransmitting seq=%d to %s (attempt %d)", h.id, req.sequence, req.destination, req.attempts)
		h.transmit(req.sequence, req.destination, req.payload)
	}
	for _, req := range toAbandon {
		logx.WithFields(logx.Fields{"destination": req.destination, "sequence": req.sequence}).Warnf("host %s: request abandoned after %d attempts", h.id, MaxAttempts)
		h.onFailure(req.destination, req.sequence)
	}
}

// PendingCount reports how many requests are currently in flight. Used by
// introspection tooling.
func (h *Host) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// ID returns this host's node identifier.
func (h *Host) ID() string { return h.id }

// HandleControlCommand answers an introspection command from hostctl
// (SUPPLEMENTED: this lineage's cmd/acks.go equivalent). The only
// recognized command is "pending"; anything else yields a usage line.
func (h *Host) HandleControlCommand(command string) string {
	if command != "pending" {
		return "usage: pending\n"
	}

	h.mu.Lock()
	sequences := make([]uint64, 0, len(h.pending))
	for seq := range h.pending {
		sequences = append(sequences, seq)
	}
	sort.Slice(sequences, func(i, j int) bool { return sequences[i] < sequences[j] })

	var b strings.Builder
	b.WriteString(colorstring.Color("[bold]Pending Requests[reset]\n"))
	for _, seq := range sequences {
		req := h.pending[seq]
		b.WriteString(colorstring.Color(fmt.Sprintf("  [yellow]seq=%d[reset] -> %s attempts=%d\n", req.sequence, req.destination, req.attempts)))
	}
	h.mu.Unlock()

	return b.String()
}
