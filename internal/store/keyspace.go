package store

import (
	"sort"
	"strings"
	"sync"

	"ringkeep/internal/ringerr"
)

// staticTables are table names exempt from join-redistribution, per
// spec §4.3/§4.5. Marking a peer Down truncates no table's CSV, static or
// not. AEROPUERTOS (airports) is the reference system's one
// static table: small, read-mostly, fully replicated to every node.
var staticTables = map[string]bool{
	"AEROPUERTOS": true,
}

// IsStatic reports whether name is a static table by the naming
// convention above.
func IsStatic(name string) bool {
	return staticTables[strings.ToUpper(name)]
}

// Keyspace is a named collection of tables, replicated at a single
// strategy and factor, per spec §4.1.
type Keyspace struct {
	mu sync.RWMutex

	Name              string
	ReplicationFactor int
	tables            map[string]*Table

	root        string
	nodeAddress string
}

// NewKeyspace creates an empty keyspace with the given replication
// factor.
func NewKeyspace(root, name string, replicationFactor int, nodeAddress string) *Keyspace {
	return &Keyspace{
		Name:              name,
		ReplicationFactor: replicationFactor,
		tables:            make(map[string]*Table),
		root:              root,
		nodeAddress:       nodeAddress,
	}
}

// CreateTable registers a new table. Returns an error if one by that name
// already exists.
func (k *Keyspace) CreateTable(name string, headers []string) (*Table, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.tables[name]; ok {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "store.Keyspace.CreateTable: table exists")
	}
	t := NewTable(k.root, k.Name, name, headers, k.nodeAddress, IsStatic(name))
	k.tables[name] = t
	return t, nil
}

// Table returns the named table, or an error if it does not exist.
func (k *Keyspace) Table(name string) (*Table, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	t, ok := k.tables[name]
	if !ok {
		return nil, ringerr.New(ringerr.KindTableNotFound, "store.Keyspace.Table")
	}
	return t, nil
}

// Tables returns every table in the keyspace, ordered by name.
func (k *Keyspace) Tables() []*Table {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, 0, len(k.tables))
	for n := range k.tables {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]*Table, len(names))
	for i, n := range names {
		out[i] = k.tables[n]
	}
	return out
}
