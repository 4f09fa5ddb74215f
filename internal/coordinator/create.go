package coordinator

import (
	"sync"

	"ringkeep/internal/cql"
	"ringkeep/internal/wire"
)

// dispatchCreate implements CREATE KEYSPACE / CREATE TABLE: apply locally,
// then forward to every other ring member with role=replica so each applies
// its own copy via applyReplica instead of re-coordinating, collecting ACKs
// but — per spec §9's explicit open question — without any quorum threshold
// on this path; a partial failure is logged, not surfaced as
// ConsistencyNotMet.
func (c *Coordinator) dispatchCreate(q *cql.Query) (wire.ResultKind, []wire.Row, error) {
	if err := c.applyCreateLocally(q); err != nil {
		return 0, nil, err
	}

	peers := c.state.RingAddresses()
	var wg sync.WaitGroup
	for _, addr := range peers {
		if addr == c.cfg.Self {
			continue
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			_, _, err := c.dialInterNode(addr, q.Raw, wire.Strong, wire.RoleReplica)
			if err != nil {
				log.WithField("peer", addr).WithField("query", q.Raw).WithError(err).
					Warn("CREATE forward failed, no quorum enforced on this path")
			}
		}(addr)
	}
	wg.Wait()

	return wire.ResultVoid, nil, nil
}

func (c *Coordinator) applyCreateLocally(q *cql.Query) error {
	switch q.Kind {
	case cql.CreateKeyspace:
		_, err := c.state.Ensure(q.Keyspace, q.ReplicationFactor)
		return err
	case cql.CreateTable:
		ks, err := c.currentKeyspace()
		if err != nil {
			return err
		}
		if _, err := ks.Table(q.Table); err == nil {
			return nil // idempotent: table already exists
		}
		_, err = ks.CreateTable(q.Table, q.Headers)
		return err
	default:
		return nil
	}
}
