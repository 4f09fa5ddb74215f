package coordinator

import (
	"ringkeep/internal/cql"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/store"
	"ringkeep/internal/wire"
)

// dispatchWrite implements the INSERT/UPDATE/DELETE row of spec §4.6's
// dispatch table: hash key to find the owner; if self is the owner, apply
// locally then fan out to replicas; otherwise forward to the owner and,
// on failure, fall back to the surrogate path.
func (c *Coordinator) dispatchWrite(q *cql.Query, consistency wire.ConsistencyLevel, key string) (wire.ResultKind, []wire.Row, error) {
	hash := ringToken(key)
	owner, ok := c.state.Owner(hash)
	if !ok {
		return 0, nil, ringerr.New(ringerr.KindOwnerNotFound, "coordinator.dispatchWrite")
	}
	ks, err := c.currentKeyspace()
	if err != nil {
		return 0, nil, err
	}

	if owner == c.cfg.Self {
		if _, err := applyWrite(ks, q); err != nil {
			return 0, nil, err
		}
		return c.fanOutWrite(q, consistency, ks.ReplicationFactor)
	}

	kind, rows, err := c.dialInterNode(owner, q.Raw, consistency, wire.RoleResponsible)
	if err == nil {
		return kind, rows, nil
	}
	log.WithField("owner", owner).WithError(err).Warn("forward to owner failed, trying surrogate path")
	c.state.MarkDown(owner)
	return c.surrogateWrite(q, consistency, owner, ks)
}

// fanOutWrite spawns one goroutine per replica of self (the owner), per
// spec §5's "one concurrent task per target, results collected through a
// channel" requirement, and applies the consistency-level success rule:
// Weak succeeds as soon as self's own local apply (already done by the
// caller) is known good; Strong waits for quorumAdditional(n) more ACKs
// before declaring success, failing with ConsistencyNotMet if the replica
// set is exhausted first.
func (c *Coordinator) fanOutWrite(q *cql.Query, consistency wire.ConsistencyLevel, n int) (wire.ResultKind, []wire.Row, error) {
	replicas := c.state.Replicas(n)
	if len(replicas) == 0 {
		return wire.ResultVoid, nil, nil
	}

	results := make(chan error, len(replicas))
	for _, addr := range replicas {
		go func(addr string) {
			_, _, err := c.dialInterNode(addr, q.Raw, consistency, wire.RoleReplica)
			if err != nil {
				c.state.MarkDown(addr)
			}
			results <- err
		}(addr)
	}

	if consistency != wire.Strong {
		go drainResults(results, len(replicas))
		return wire.ResultVoid, nil, nil
	}

	needed := quorumAdditional(n)
	got, reported := 0, 0
	for reported < len(replicas) {
		if err := <-results; err == nil {
			got++
			if got >= needed {
				go drainResults(results, len(replicas)-reported-1)
				return wire.ResultVoid, nil, nil
			}
		}
		reported++
	}
	return 0, nil, ringerr.New(ringerr.KindConsistencyNotMet, "coordinator.fanOutWrite")
}

// surrogateWrite handles the case where self is neither the owner nor able
// to reach it (§4.6): if self is itself one of the owner's replicas, its
// local apply counts as one quorum contribution; the remaining replicas
// are contacted directly, applying the same consistency rule as
// fanOutWrite against the owner's replication factor.
func (c *Coordinator) surrogateWrite(q *cql.Query, consistency wire.ConsistencyLevel, downOwner string, ks *store.Keyspace) (wire.ResultKind, []wire.Row, error) {
	ownerReplicas := c.state.ReplicasOf(downOwner, ks.ReplicationFactor)
	others := withoutAddr(ownerReplicas, c.cfg.Self)

	got := 0
	if contains(ownerReplicas, c.cfg.Self) {
		if _, err := applyWrite(ks, q); err == nil {
			got++
		}
	}

	if len(others) == 0 {
		if consistency == wire.Strong && got < quorumAdditional(ks.ReplicationFactor)+1 {
			return 0, nil, ringerr.New(ringerr.KindConsistencyNotMet, "coordinator.surrogateWrite")
		}
		return wire.ResultVoid, nil, nil
	}

	results := make(chan error, len(others))
	for _, addr := range others {
		go func(addr string) {
			_, _, err := c.dialInterNode(addr, q.Raw, consistency, wire.RoleReplica)
			if err != nil {
				c.state.MarkDown(addr)
			}
			results <- err
		}(addr)
	}

	if consistency != wire.Strong {
		if got >= 1 {
			go drainResults(results, len(others))
			return wire.ResultVoid, nil, nil
		}
		for i := 0; i < len(others); i++ {
			if err := <-results; err == nil {
				go drainResults(results, len(others)-i-1)
				return wire.ResultVoid, nil, nil
			}
		}
		return 0, nil, ringerr.New(ringerr.KindConsistencyNotMet, "coordinator.surrogateWrite")
	}

	needed := quorumAdditional(ks.ReplicationFactor) + 1 // owner is down, so self (if a replica) plus others must cover Q
	reported := 0
	for reported < len(others) {
		if err := <-results; err == nil {
			got++
			if got >= needed {
				go drainResults(results, len(others)-reported-1)
				return wire.ResultVoid, nil, nil
			}
		}
		reported++
	}
	if got >= needed {
		return wire.ResultVoid, nil, nil
	}
	return 0, nil, ringerr.New(ringerr.KindConsistencyNotMet, "coordinator.surrogateWrite")
}

func drainResults(results chan error, remaining int) {
	for i := 0; i < remaining; i++ {
		<-results
	}
}
