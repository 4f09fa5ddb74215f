// Package storage persists peer membership records to local disk so a
// restarted node has a warm set of contacts before its first gossip round
// completes, instead of depending solely on the seeds file. Grounded on
// the teacher's internal/storage/leveldb.go for the open-or-recover
// LevelDB lifecycle and the JSON-blob-per-key encoding, adapted
// from arbitrary key/value pairs onto one fixed record shape: a peer's
// address, incarnation, and status.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"

	"ringkeep/internal/logging"
	"ringkeep/internal/membership"
)

var log = logging.For("storage")

// PeerCache persists the last-known incarnation/status of every peer this
// node has gossiped with, keyed by address.
type PeerCache struct {
	db *leveldb.DB
}

// peerRecord is the JSON shape stored per key: membership.Peer flattened,
// with its Status stored as the status name.
type peerRecord struct {
	Address    string  `json:"address"`
	Generation float64 `json:"generation"`
	Version    int64   `json:"version"`
	Status     string  `json:"status"`
}

// OpenPeerCache opens the LevelDB file at dataDir/<self>/peers, attempting
// a recovery if it is corrupted; it returns an error if that fails too.
func OpenPeerCache(dataDir, self string) (*PeerCache, error) {
	path := fmt.Sprintf("%s/%s/peers", dataDir, self)

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		if errors.IsCorrupted(err) {
			log.WithField("path", path).Warn("peer cache corrupted, attempting recovery")
			db, err = leveldb.RecoverFile(path, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("storage.OpenPeerCache: %w", err)
		}
	}
	return &PeerCache{db: db}, nil
}

// Save persists one peer's current incarnation and status.
func (c *PeerCache) Save(p membership.Peer) error {
	rec := peerRecord{
		Address:    p.Address,
		Generation: p.Generation,
		Version:    p.Version,
		Status:     p.Status.String(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.db.Put([]byte(p.Address), data, nil)
}

// SaveAll persists every peer in peers, logging (not failing) on a
// per-record encode/write error so one bad record can't block a snapshot.
func (c *PeerCache) SaveAll(peers map[string]membership.Peer) {
	for _, p := range peers {
		if err := c.Save(p); err != nil {
			log.WithError(err).WithField("peer", p.Address).Warn("peer cache save failed")
		}
	}
}

// LoadAll returns every persisted peer record.
func (c *PeerCache) LoadAll() (map[string]membership.Peer, error) {
	out := make(map[string]membership.Peer)
	iter := c.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var rec peerRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			log.WithError(err).Warn("peer cache record decode failed, skipping")
			continue
		}
		status, err := membership.ParseStatus(rec.Status)
		if err != nil {
			continue
		}
		out[rec.Address] = membership.Peer{
			Address:     rec.Address,
			Incarnation: membership.Incarnation{Generation: rec.Generation, Version: rec.Version},
			Status:      status,
		}
	}
	return out, iter.Error()
}

// Close releases the underlying LevelDB handle.
func (c *PeerCache) Close() error {
	return c.db.Close()
}
