// Package ring implements the token ring: an ordered mapping from a node's
// 32-bit hash token to its address, with ownership and successor-walk
// rules per spec §3/§4.4.
//
// Ring is a plain data structure with no locking of its own. Per §5/§9,
// ring and peer membership change together and are guarded by one coarse
// lock owned by the nodestate package; table row storage is a separate,
// much hotter path and locks itself per table instead (see the store
// package). Callers touching a Ring must hold nodestate's lock.
package ring

import (
	"sort"

	"github.com/spaolacci/murmur3"
)

// Token hashes an address into its 32-bit ring token using MurmurHash3
// (32-bit variant, seed 0), per spec §3.
func Token(address string) uint32 {
	return murmur3.Sum32WithSeed([]byte(address), 0)
}

type entry struct {
	token   uint32
	address string
}

// Ring is the sorted token->address mapping. The teacher's consistent-hash
// ring generalizes to a single token per node here (spec §3 rejects virtual
// nodes), but keeps the same sorted-slice-plus-binary-search shape.
type Ring struct {
	entries []entry
	byAddr  map[string]uint32
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{byAddr: make(map[string]uint32)}
}

// Add inserts address at its token position. A no-op if already present.
func (r *Ring) Add(address string) uint32 {
	if t, ok := r.byAddr[address]; ok {
		return t
	}
	t := Token(address)
	r.byAddr[address] = t
	r.entries = append(r.entries, entry{token: t, address: address})
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].token < r.entries[j].token })
	return t
}

// Remove deletes address from the ring (its token slot is freed; peer
// metadata is untouched — that lives in the membership package).
func (r *Ring) Remove(address string) {
	if _, ok := r.byAddr[address]; !ok {
		return
	}
	delete(r.byAddr, address)
	out := r.entries[:0]
	for _, e := range r.entries {
		if e.address != address {
			out = append(out, e)
		}
	}
	r.entries = out
}

// Contains reports whether address currently holds a ring slot.
func (r *Ring) Contains(address string) bool {
	_, ok := r.byAddr[address]
	return ok
}

// Len returns the number of addresses on the ring.
func (r *Ring) Len() int { return len(r.entries) }

// Addresses returns every address on the ring, ordered by token.
func (r *Ring) Addresses() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.address
	}
	return out
}

// Owner returns the address responsible for a key hash: the first node
// whose token is >= hash, wrapping to the lowest-token node if none
// qualifies. Returns false if the ring is empty.
func (r *Ring) Owner(hash uint32) (string, bool) {
	if len(r.entries) == 0 {
		return "", false
	}
	idx := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].token >= hash })
	if idx == len(r.entries) {
		idx = 0
	}
	return r.entries[idx].address, true
}

// Successors returns up to n ring-successors of address, walking clockwise
// with wrap-around and excluding address itself. Down nodes are never
// skipped here because they are already removed from the ring before this
// is called (§4.4).
func (r *Ring) Successors(address string, n int) []string {
	if n <= 0 || len(r.entries) == 0 {
		return nil
	}
	start := -1
	for i, e := range r.entries {
		if e.address == address {
			start = i
			break
		}
	}
	if start < 0 {
		// address is not itself on the ring (e.g. computing replicas for a
		// not-yet-joined node); walk from its token position instead.
		t := Token(address)
		start = sort.Search(len(r.entries), func(i int) bool { return r.entries[i].token >= t })
		if start == len(r.entries) {
			start = 0
		}
		start-- // Successors begins at start+1 below; back up one slot.
		if start < 0 {
			start = len(r.entries) - 1
		}
	}

	max := n
	if max > len(r.entries)-1 {
		max = len(r.entries) - 1
	}
	out := make([]string, 0, max)
	for i := 1; i <= len(r.entries)-1 && len(out) < n; i++ {
		idx := (start + i) % len(r.entries)
		out = append(out, r.entries[idx].address)
	}
	return out
}

// Predecessor returns the address whose token immediately precedes token,
// wrapping around. Used by join redistribution (§4.5) to find the
// distributor for a newly-joined address. Returns false if the ring is
// empty.
func (r *Ring) Predecessor(token uint32) (string, bool) {
	if len(r.entries) == 0 {
		return "", false
	}
	idx := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].token >= token })
	idx--
	if idx < 0 {
		idx = len(r.entries) - 1
	}
	return r.entries[idx].address, true
}
