// Package topology derives forwarding tables from a link-state database:
// shortest-path computation with deterministic tie-breaking, bidirectional
// edge confirmation, and host-leaf resolution (spec.md §4.2, §9).
package topology

import (
	"container/heap"
	"math"
	"net/netip"

	"lsproto.dev/lsproto/internal/lsdb"
)

const infinity = math.MaxInt

// ComputeForwardingTable runs shortest-path-first over the confirmed
// router graph implied by lsas and returns a destination -> next-hop
// endpoint mapping for every reachable router and every host attached to
// a reachable router (including self's own locally-attached hosts).
//
//   - self is this router's own ID; it must have an entry in lsas.
//   - neighborEndpoints maps a direct router neighbor's ID to the
//     endpoint used to reach it.
//   - localHostEndpoints maps a host ID directly attached to self to that
//     host's endpoint.
func ComputeForwardingTable(
	self string,
	lsas map[string]lsdb.LSA,
	neighborEndpoints map[string]netip.AddrPort,
	localHostEndpoints map[string]netip.AddrPort,
) map[string]netip.AddrPort {
	dist, nextHop := shortestPaths(self, lsas)

	table := make(map[string]netip.AddrPort)

	for router, d := range dist {
		if router == self || d == infinity {
			continue
		}
		ep, ok := neighborEndpoints[nextHop[router]]
		if !ok {
			continue // next hop not a direct neighbor we can reach; skip
		}
		table[router] = ep
	}

	// Resolve host leaves: any link target that never originates an LSA
	// of its own is a stub host attached to the LSA's owner.
	for owner, lsa := range lsas {
		for target := range lsa.Links {
			if _, isRouter := lsas[target]; isRouter {
				continue
			}

			if owner == self {
				if ep, ok := localHostEndpoints[target]; ok {
					table[target] = ep
				}
				continue
			}

			if ep, ok := table[owner]; ok {
				table[target] = ep
			}
		}
	}

	return table
}

// shortestPaths computes, for every node reachable from self over
// bidirectionally-confirmed edges, its distance and the ID of the first-hop
// neighbor on the shortest (lexicographically tie-broken) path.
func shortestPaths(self string, lsas map[string]lsdb.LSA) (dist map[string]int, nextHop map[string]string) {
	edges := confirmedEdges(lsas)

	dist = make(map[string]int, len(lsas))
	nextHop = make(map[string]string, len(lsas))
	for id := range lsas {
		dist[id] = infinity
	}
	dist[self] = 0

	visited := make(map[string]bool, len(lsas))

	pq := &priorityQueue{{id: self, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		for neighbor, cost := range edges[cur.id] {
			if visited[neighbor] {
				continue
			}

			candidateDist := dist[cur.id] + cost

			var candidateNextHop string
			if cur.id == self {
				candidateNextHop = neighbor
			} else {
				candidateNextHop = nextHop[cur.id]
			}

			if candidateDist < dist[neighbor] ||
				(candidateDist == dist[neighbor] && candidateNextHop < nextHop[neighbor]) {
				dist[neighbor] = candidateDist
				nextHop[neighbor] = candidateNextHop
				heap.Push(pq, item{id: neighbor, dist: candidateDist})
			}
		}
	}

	return dist, nextHop
}

// confirmedEdges builds the directed adjacency used for SPF: an edge
// originator -> neighbor is included only when both originator's and
// neighbor's LSAs list each other (spec.md §4.2 "bidirectional-confirmed"),
// and only when neighbor is itself a router (has an LSA of its own) —
// link targets with no LSA are host leaves, resolved separately.
func confirmedEdges(lsas map[string]lsdb.LSA) map[string]map[string]int {
	edges := make(map[string]map[string]int, len(lsas))

	for originator, lsa := range lsas {
		for neighbor, cost := range lsa.Links {
			neighborLSA, isRouter := lsas[neighbor]
			if !isRouter {
				continue
			}
			if _, reciprocal := neighborLSA.Links[originator]; !reciprocal {
				continue
			}

			if edges[originator] == nil {
				edges[originator] = make(map[string]int)
			}
			edges[originator][neighbor] = cost
		}
	}

	return edges
}

type item struct {
	id   string
	dist int
}

type priorityQueue []item

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)         { *pq = append(*pq, x.(item)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}
