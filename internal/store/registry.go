package store

import (
	"sort"
	"sync"

	"ringkeep/internal/ringerr"
)

// Registry is the node-local set of keyspaces, the root of the table
// store (C3). It has its own lock distinct from nodestate's coarse lock:
// the keyspace map changes far less often than ring/peer membership, and
// every mutation below it (row CRUD) is already guarded per-Table, so
// giving the registry its own lock keeps row I/O off the hot
// ring/gossip critical section.
type Registry struct {
	mu sync.RWMutex

	root        string
	nodeAddress string
	keyspaces   map[string]*Keyspace
}

// NewRegistry creates an empty registry rooted at dataDir.
func NewRegistry(dataDir, nodeAddress string) *Registry {
	return &Registry{
		root:        dataDir,
		nodeAddress: nodeAddress,
		keyspaces:   make(map[string]*Keyspace),
	}
}

// CreateKeyspace registers a new keyspace. Returns an error if one by that
// name already exists.
func (reg *Registry) CreateKeyspace(name string, replicationFactor int) (*Keyspace, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.keyspaces[name]; ok {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "store.Registry.CreateKeyspace: keyspace exists")
	}
	ks := NewKeyspace(reg.root, name, replicationFactor, reg.nodeAddress)
	reg.keyspaces[name] = ks
	return ks, nil
}

// Keyspace returns the named keyspace, or KeyspaceNotFound.
func (reg *Registry) Keyspace(name string) (*Keyspace, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	ks, ok := reg.keyspaces[name]
	if !ok {
		return nil, ringerr.New(ringerr.KindKeyspaceNotFound, "store.Registry.Keyspace")
	}
	return ks, nil
}

// Keyspaces returns every keyspace, ordered by name.
func (reg *Registry) Keyspaces() []*Keyspace {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	names := make([]string, 0, len(reg.keyspaces))
	for n := range reg.keyspaces {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]*Keyspace, len(names))
	for i, n := range names {
		out[i] = reg.keyspaces[n]
	}
	return out
}
