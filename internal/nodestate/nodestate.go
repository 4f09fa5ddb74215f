// Package nodestate holds the single node-local record described in
// spec §3: ring, peer membership, the keyspace/table registry, the
// logical write timestamp and the per-round gossip contact set. Per §5/§9
// it exposes one coarse lock over ring+peers+timestamp+recent-gossip+
// replicas (the fields that change together and that gossip and ring
// maintenance touch); table row storage is guarded separately, per table,
// inside the store package, since it is the much hotter path and fan-out
// I/O must never run with any lock held.
//
// Grounded on the teacher's internal/storage/leveldb.go for the
// constructor-takes-identity-and-dir shape, generalized from a single
// storage engine into the full node record this system tracks.
package nodestate

import (
	"sort"
	"strconv"
	"sync"

	"ringkeep/internal/logging"
	"ringkeep/internal/membership"
	"ringkeep/internal/ring"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/store"
)

var log = logging.For("nodestate")

// State is the node-local record.
type State struct {
	mu sync.RWMutex

	Self  string
	Token uint32

	ring  *ring.Ring
	peers map[string]*membership.Peer

	timestamp    int64
	recentGossip map[string]bool

	// Generation is this process's startup epoch, used as every locally
	// originated Incarnation's generation component.
	Generation float64

	Registry        *store.Registry
	CurrentKeyspace string

	DataRoot string
}

// New creates a node record for address self, rooted at dataDir for table
// persistence, with generation as the startup epoch used for this node's
// own incarnation.
func New(self, dataDir, currentKeyspace string, generation float64) *State {
	r := ring.New()
	token := r.Add(self)

	s := &State{
		Self:            self,
		Token:           token,
		ring:            r,
		peers:           make(map[string]*membership.Peer),
		recentGossip:    make(map[string]bool),
		Generation:      generation,
		Registry:        store.NewRegistry(dataDir, self),
		CurrentKeyspace: currentKeyspace,
		DataRoot:        dataDir,
	}
	s.peers[self] = &membership.Peer{
		Address:     self,
		Incarnation: membership.Incarnation{Generation: generation, Version: 0},
		Status:      membership.Normal,
	}
	return s
}

// Timestamp returns the current logical write counter.
func (s *State) Timestamp() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timestamp
}

// BumpTimestamp increments and returns the new logical write counter. Call
// exactly once per successful local mutation, per spec §3.
func (s *State) BumpTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestamp++
	return s.timestamp
}

// Owner returns the address responsible for hash.
func (s *State) Owner(hash uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Owner(hash)
}

// Replicas returns the replication-factor-bound successor list for self:
// min(N-1, ringSize-1) ring-successors, per spec §3's replicas invariant.
func (s *State) Replicas(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Successors(s.Self, n)
}

// ReplicasOf returns up to n ring-successors of address — used by the
// surrogate path to recompute the owner's replica set when the owner
// itself cannot be reached (§4.6).
func (s *State) ReplicasOf(address string, n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Successors(address, n)
}

// RingAddresses returns every address currently on the ring.
func (s *State) RingAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Addresses()
}

// RingContains reports whether address currently holds a ring slot.
func (s *State) RingContains(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Contains(address)
}

// Predecessor returns the ring predecessor of token, used to find the join
// redistribution distributor, per spec §4.5.
func (s *State) Predecessor(token uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Predecessor(token)
}

// Peer returns a copy of the peer record for address, if known.
func (s *State) Peer(address string) (membership.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[address]
	if !ok {
		return membership.Peer{}, false
	}
	return *p, true
}

// Peers returns a snapshot copy of every known peer record.
func (s *State) Peers() map[string]membership.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]membership.Peer, len(s.peers))
	for addr, p := range s.peers {
		out[addr] = *p
	}
	return out
}

// SelfIncarnation returns self's current incarnation tuple, for building
// SYN digests.
func (s *State) SelfIncarnation() membership.Incarnation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[s.Self].Incarnation
}

// BumpSelfVersion increments self's version, per the gossip round's "after
// all picks" step (§4.5 step 3).
func (s *State) BumpSelfVersion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[s.Self].Version++
}

// ObserveDigestEntry applies one (address, incarnation) pair learned from a
// peer, creating the record on first observation. Returns the resulting
// peer record and whether its status transitioned to Normal from any other
// status (a first join or a return from Down) — callers use this to
// trigger join redistribution and ring insertion.
func (s *State) ObserveDigestEntry(address string, incarnation membership.Incarnation, reportedStatus membership.Status) (membership.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, known := s.peers[address]
	if !known {
		existing = &membership.Peer{Address: address, Status: membership.Bootstrap}
		s.peers[address] = existing
	}

	wasNormal := existing.Status == membership.Normal
	existing.Incarnation = incarnation
	existing.Status = reportedStatus

	switch reportedStatus {
	case membership.Down:
		s.ring.Remove(address)
	case membership.Normal:
		s.ring.Add(address)
	}

	becameNormal := !wasNormal && reportedStatus == membership.Normal
	return *existing, becameNormal
}

// MarkDown transitions address from Normal to Down after a failed direct
// contact: bumps its version, removes it from the ring, per spec §4.5's
// failure marking rule.
func (s *State) MarkDown(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[address]
	if !ok {
		p = &membership.Peer{Address: address, Incarnation: membership.Incarnation{}, Status: membership.Down}
		s.peers[address] = p
	}
	p.Status = membership.Down
	p.Version++
	s.ring.Remove(address)
	log.WithField("peer", address).Warn("marked peer down after failed contact")
}

// RecentGossip reports whether address has already been contacted this
// round.
func (s *State) RecentGossip(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentGossip[address]
}

// MarkRecentGossip records address as contacted this round.
func (s *State) MarkRecentGossip(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentGossip[address] = true
}

// ClearRecentGossip empties the per-round contact set (step 3 of the
// gossip round, §4.5).
func (s *State) ClearRecentGossip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentGossip = make(map[string]bool)
}

// PickGossipTargets selects up to n ring members not yet contacted this
// round, excluding self, falling back to seeds when the ring has nobody
// else yet.
func (s *State) PickGossipTargets(n int, seeds []string) []string {
	s.mu.RLock()
	addrs := s.ring.Addresses()
	s.mu.RUnlock()

	var candidates []string
	for _, a := range addrs {
		if a == s.Self || s.RecentGossip(a) {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		for _, seed := range seeds {
			if seed != s.Self && !s.RecentGossip(seed) {
				candidates = append(candidates, seed)
			}
		}
	}
	sort.Strings(candidates)
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// Digest renders self's full view of peer incarnations as the
// whitespace-separated "ip:gen:ver" triples the gossip wire format uses.
func (s *State) Digest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]string, 0, len(s.peers))
	for a := range s.peers {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	var sb []byte
	for i, a := range addrs {
		if i > 0 {
			sb = append(sb, ' ')
		}
		p := s.peers[a]
		sb = append(sb, []byte(formatTriple(a, p.Generation, p.Version))...)
	}
	return string(sb)
}

func formatTriple(address string, generation float64, version int64) string {
	return address + ":" + strconv.FormatFloat(generation, 'f', -1, 64) + ":" + strconv.FormatInt(version, 10)
}

// Ensure ensures a keyspace of the given name/replication factor exists in
// the registry, returning the existing one if already present. Used by
// CREATE KEYSPACE (idempotent forwarding per §9's "no quorum check on
// forwarded CREATE" open question).
func (s *State) Ensure(name string, replicationFactor int) (*store.Keyspace, error) {
	ks, err := s.Registry.Keyspace(name)
	if err == nil {
		return ks, nil
	}
	if !ringerr.Is(err, ringerr.KindKeyspaceNotFound) {
		return nil, err
	}
	return s.Registry.CreateKeyspace(name, replicationFactor)
}
