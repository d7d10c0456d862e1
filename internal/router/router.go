// Package router implements the router core: LSDB maintenance, flooding,
// Dijkstra recomputation, forwarding-table publication, and datagram
// dispatch (spec.md §4.2). It is the heaviest single component, grounded
// on this codebase's original routing.Router but built around the
// JSON wire format and the spec's event contract rather than the
// teacher's binary packet format.
package router

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/colorstring"

	"lsproto.dev/lsproto/internal/assert"
	"lsproto.dev/lsproto/internal/lsdb"
	"lsproto.dev/lsproto/internal/logx"
	"lsproto.dev/lsproto/internal/sockutil"
	"lsproto.dev/lsproto/internal/topology"
	"lsproto.dev/lsproto/internal/wire"
)

const (
	// LSAPeriod is the cadence of periodic LSA origination (spec.md §4.2).
	LSAPeriod = 30 * time.Second
	// AgeSweepPeriod is the cadence of the LSDB/neighbor aging sweep.
	AgeSweepPeriod = 10 * time.Second
	// NeighborDeadInterval is how long a neighbor may go without a fresh
	// LSA before it is dropped from this router's own LSA (recommended
	// 3x LSAPeriod, spec.md §4.2).
	NeighborDeadInterval = 3 * LSAPeriod
	// LSAMaxAge bounds how long any LSDB entry survives without a refresh.
	LSAMaxAge = 3 * LSAPeriod
	// jitterFraction is the maximum fraction of LSAPeriod by which
	// successive origination ticks are perturbed, to avoid synchronized
	// floods across a freshly-started topology (spec.md §4.4).
	jitterFraction = 0.10
)

// Neighbor is a statically configured direct router neighbor.
type Neighbor struct {
	ID       string
	Endpoint netip.AddrPort
	Cost     int
}

// HostAttachment is a host directly attached to this router.
type HostAttachment struct {
	ID       string
	Endpoint netip.AddrPort
}

// Router owns a single node's routing state: the LSDB, neighbor table,
// and forwarding table, plus the local LSA sequence counter. All mutation
// of lsdb/neighbors/sequence happens under mu, the single critical
// section mandated by spec.md §5; the forwarding table is published by
// atomic pointer so the forwarding path never blocks on recomputation.
type Router struct {
	id     string
	socket sockutil.Socket
	now    func() int64 // monotonic nanoseconds; overridable in tests

	mu        sync.Mutex
	db        *lsdb.LSDB
	neighbors map[string]*neighborState
	localSeq  uint64

	localHosts map[string]HostAttachment

	fwdTable atomic.Pointer[map[string]netip.AddrPort]
}

// neighborState is the router-local neighbor record (spec.md §3), plus
// the endpoint used to reach it.
type neighborState struct {
	endpoint   netip.AddrPort
	cost       int
	lastSeenNs int64
}

// New creates a Router for node id, bound to socket, with the given
// static neighbors and locally attached hosts. now should return a
// monotonic clock reading in nanoseconds, such as int64(time.Since(start))
// for a fixed start time (or a fake) — it is never used for wall-clock
// display, only for freshness comparisons.
func New(id string, socket sockutil.Socket, neighbors []Neighbor, hosts []HostAttachment, now func() int64) *Router {
	r := &Router{
		id:         id,
		socket:     socket,
		now:        now,
		db:         lsdb.New(),
		neighbors:  make(map[string]*neighborState, len(neighbors)),
		localHosts: make(map[string]HostAttachment, len(hosts)),
	}
	for _, n := range neighbors {
		r.neighbors[n.ID] = &neighborState{endpoint: n.Endpoint, cost: n.Cost, lastSeenNs: now()}
	}
	for _, h := range hosts {
		r.localHosts[h.ID] = h
	}
	empty := map[string]netip.AddrPort{}
	r.fwdTable.Store(&empty)
	return r
}

// Run drives the receive loop and all periodic timers until ctx-style
// shutdown is requested by closing stop. It blocks; callers run it in its
// own goroutine.
func (r *Router) Run(stop <-chan struct{}) {
	datagrams := r.socket.Subscribe()

	lsaTimer := time.NewTimer(jitter(LSAPeriod))
	defer lsaTimer.Stop()
	ageTicker := time.NewTicker(AgeSweepPeriod)
	defer ageTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case dg := <-datagrams:
			r.handleDatagram(dg)
		case <-lsaTimer.C:
			r.originateLSA()
			lsaTimer.Reset(jitter(LSAPeriod))
		case <-ageTicker.C:
			r.ageSweep()
		}
	}
}

func jitter(period time.Duration) time.Duration {
	spread := float64(period) * jitterFraction
	offset := (rand.Float64()*2 - 1) * spread
	return period + time.Duration(offset)
}

// ForwardingTable returns the most recently published forwarding table.
// Safe for concurrent use; never blocks on recomputation (spec.md §5).
func (r *Router) ForwardingTable() map[string]netip.AddrPort {
	return *r.fwdTable.Load()
}

// handleDatagram dispatches a received datagram by kind (spec.md §4.2
// operation 1). Decode failures are dropped silently per spec.md §7.
func (r *Router) handleDatagram(dg *sockutil.Datagram) {
	msg, err := wire.Decode(dg.Data)
	if err != nil {
		logx.Debugf("router %s: dropping malformed datagram from %v: %v", r.id, dg.From, err)
		return
	}

	switch msg.Kind {
	case wire.KindLSA:
		r.handleLSA(msg, dg.From)
	case wire.KindData, wire.KindAck:
		r.forwardOrDeliver(msg)
	case wire.KindHello:
		// HELLO carries no routing semantics in this core; decoding and
		// dropping it is enough to keep the wire format usable end to end.
	default:
		logx.Warnf("router %s: unknown datagram kind %q", r.id, msg.Kind)
	}
}

// handleLSA applies the freshness rule, floods on acceptance (split
// horizon by arrival endpoint), and recomputes the forwarding table.
func (r *Router) handleLSA(msg wire.Message, from netip.AddrPort) {
	r.mu.Lock()

	accepted := r.db.Apply(lsdb.LSA{
		Originator: msg.Originator,
		Sequence:   msg.Sequence,
		AgeEmitted: msg.AgeEmitted,
		Links:      msg.Links,
	}, r.now())

	if accepted {
		if n, ok := r.neighbors[msg.Originator]; ok {
			n.lastSeenNs = r.now()
		}
	}

	r.mu.Unlock()

	if !accepted {
		logx.Debugf("router %s: discarding stale/duplicate LSA from %s seq=%d", r.id, msg.Originator, msg.Sequence)
		return
	}

	r.recompute()
	r.flood(msg, from)
}

// flood reflloods an accepted LSA to every direct neighbor except the one
// it arrived on (spec.md §4.2, §9 split-horizon).
func (r *Router) flood(msg wire.Message, arrivedOn netip.AddrPort) {
	encoded, err := wire.Encode(msg)
	if err != nil {
		assert.Never("re-encoding an already-decoded LSA failed: %v", err)
	}

	r.mu.Lock()
	targets := make([]netip.AddrPort, 0, len(r.neighbors))
	for _, n := range r.neighbors {
		if n.endpoint == arrivedOn {
			continue
		}
		targets = append(targets, n.endpoint)
	}
	r.mu.Unlock()

	for _, ep := range targets {
		if err := r.socket.SendTo(ep, encoded); err != nil {
			logx.Warnf("router %s: flood send to %v failed: %v", r.id, ep, err)
		}
	}
}

// forwardOrDeliver handles DATA and ACK by the same destination-lookup
// path (spec.md §4.2 operation 1): deliver locally if the destination is
// an attached host, otherwise consult the forwarding table and forward.
// TTL only applies to DATA — ACK carries no ttl field (wire.Message.TTL
// doc comment, spec.md §4.1) and is forwarded/delivered unconditionally.
func (r *Router) forwardOrDeliver(msg wire.Message) {
	r.mu.Lock()
	local, isLocal := r.localHosts[msg.Destination]
	r.mu.Unlock()

	out := msg
	if msg.Kind != wire.KindAck {
		decremented, forwardable := wire.DecrementTTL(msg)
		if !forwardable {
			logx.Debugf("router %s: dropping %s to %s: TTL expired", r.id, msg.Kind, msg.Destination)
			return
		}
		out = decremented
	}

	if isLocal {
		r.send(local.Endpoint, out)
		return
	}

	table := r.ForwardingTable()
	nextHop, ok := table[msg.Destination]
	if !ok {
		logx.Debugf("router %s: dropping %s: no route to %s", r.id, msg.Kind, msg.Destination)
		return
	}
	r.send(nextHop, out)
}

func (r *Router) send(to netip.AddrPort, msg wire.Message) {
	encoded, err := wire.Encode(msg)
	if err != nil {
		assert.Never("re-encoding an already-decoded message failed: %v", err)
	}
	if err := r.socket.SendTo(to, encoded); err != nil {
		logx.Warnf("router %s: send to %v failed: %v", r.id, to, err)
	}
}

// originateLSA is spec.md §4.2 operation 2: build a fresh LSA from
// currently-live neighbors and locally attached hosts, install it in the
// local LSDB, and flood it to every direct neighbor.
func (r *Router) originateLSA() {
	r.mu.Lock()
	r.localSeq++
	seq := r.localSeq

	links := make(map[string]int, len(r.neighbors)+len(r.localHosts))
	for id, n := range r.neighbors {
		if r.now()-n.lastSeenNs <= int64(NeighborDeadInterval) {
			links[id] = n.cost
		}
	}
	for id := range r.localHosts {
		links[id] = 0
	}

	lsa := lsdb.LSA{Originator: r.id, Sequence: seq, AgeEmitted: time.Now().Unix(), Links: links}
	r.db.Apply(lsa, r.now())

	targets := make([]netip.AddrPort, 0, len(r.neighbors))
	for _, n := range r.neighbors {
		targets = append(targets, n.endpoint)
	}
	r.mu.Unlock()

	msg := wire.Message{
		Kind: wire.KindLSA, Originator: r.id, Sequence: seq,
		AgeEmitted: lsa.AgeEmitted, Links: links, TTL: wire.InitialTTL,
	}
	encoded, err := wire.Encode(msg)
	if err != nil {
		assert.Never("encoding a freshly-built LSA failed: %v", err)
	}

	for _, ep := range targets {
		if err := r.socket.SendTo(ep, encoded); err != nil {
			logx.Warnf("router %s: origination send to %v failed: %v", r.id, ep, err)
		}
	}

	r.recompute()
}

// ageSweep is spec.md §4.2 operation 3: expire stale LSDB entries and log
// every neighbor silent for longer than NeighborDeadInterval (neighbor
// records are kept; originateLSA leaves such neighbors out of its links).
// It recomputes when an entry was removed or any neighbor is past that
// interval, on every sweep for as long as that lasts.
func (r *Router) ageSweep() {
	r.mu.Lock()
	now := r.now()

	removedLSAs := r.db.AgeSweep(now, int64(LSAMaxAge))

	deadNeighbor := false
	for id, n := range r.neighbors {
		if now-n.lastSeenNs > int64(NeighborDeadInterval) {
			deadNeighbor = true
			logx.WithFields(logx.Fields{"neighbor": id}).Infof("router %s: neighbor declared dead", r.id)
		}
	}
	r.mu.Unlock()

	if len(removedLSAs) > 0 || deadNeighbor {
		r.recompute()
	}
}

// recompute rebuilds the forwarding table wholesale from the current LSDB
// (spec.md §3 "no partial mutation") and publishes it by atomic pointer
// swap. Dijkstra itself is non-suspending pure computation (spec.md §5);
// only the LSDB snapshot under mu is a critical section.
func (r *Router) recompute() {
	r.mu.Lock()
	all := r.db.All()

	neighborEndpoints := make(map[string]netip.AddrPort, len(r.neighbors))
	for id, n := range r.neighbors {
		neighborEndpoints[id] = n.endpoint
	}
	localHostEndpoints := make(map[string]netip.AddrPort, len(r.localHosts))
	for id, h := range r.localHosts {
		localHostEndpoints[id] = h.Endpoint
	}
	r.mu.Unlock()

	// Ensure self always appears in the graph, even before the first
	// periodic origination fires.
	if _, ok := all[r.id]; !ok {
		all[r.id] = lsdb.LSA{Originator: r.id, Links: map[string]int{}}
	}

	table := topology.ComputeForwardingTable(r.id, all, neighborEndpoints, localHostEndpoints)
	r.fwdTable.Store(&table)
}

// ID returns this router's node identifier.
func (r *Router) ID() string { return r.id }

// HandleControlCommand answers an introspection command from routerctl
// (SUPPLEMENTED: this lineage's cmd/listdb.go equivalent). Recognized
// commands are "lsdb" and "fwd"; anything else yields a usage line.
func (r *Router) HandleControlCommand(command string) string {
	switch command {
	case "lsdb":
		return r.dumpLSDB()
	case "fwd":
		return r.dumpForwardingTable()
	default:
		return "usage: lsdb | fwd\n"
	}
}

func (r *Router) dumpLSDB() string {
	r.mu.Lock()
	all := r.db.All()
	r.mu.Unlock()

	originators := make([]string, 0, len(all))
	for id := range all {
		originators = append(originators, id)
	}
	sort.Strings(originators)

	var b strings.Builder
	b.WriteString(colorstring.Color("[bold]Link State Database[reset]\n"))
	for _, id := range originators {
		lsa := all[id]
		links := make([]string, 0, len(lsa.Links))
		for peer, cost := range lsa.Links {
			links = append(links, fmt.Sprintf("%s:%d", peer, cost))
		}
		sort.Strings(links)
		b.WriteString(colorstring.Color(fmt.Sprintf("  [green]%s[reset] seq=%d links={%s}\n", id, lsa.Sequence, strings.Join(links, ", "))))
	}
	return b.String()
}

func (r *Router) dumpForwardingTable() string {
	table := r.ForwardingTable()

	destinations := make([]string, 0, len(table))
	for id := range table {
		destinations = append(destinations, id)
	}
	sort.Strings(destinations)

	var b strings.Builder
	b.WriteString(colorstring.Color("[bold]Forwarding Table[reset]\n"))
	for _, id := range destinations {
		b.WriteString(colorstring.Color(fmt.Sprintf("  [green]%s[reset] -> %s\n", id, table[id])))
	}
	return b.String()
}
