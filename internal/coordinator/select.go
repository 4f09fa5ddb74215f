package coordinator

import (
	"strconv"
	"strings"
	"sync"

	"ringkeep/internal/cql"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/store"
	"ringkeep/internal/wire"
)

// dispatchSelectBroadcast implements the WHERE-less SELECT row of spec
// §4.6's dispatch table: every ring member is asked for its local shard,
// failed peers are retried through their replica successors, and the
// union is deduplicated by row string — per §9's open question, this does
// not additionally deduplicate by timestamp across stale/fresh copies.
func (c *Coordinator) dispatchSelectBroadcast(q *cql.Query) (wire.ResultKind, []wire.Row, error) {
	ks, err := c.currentKeyspace()
	if err != nil {
		return 0, nil, err
	}
	tbl, err := ks.Table(q.Table)
	if err != nil {
		return 0, nil, err
	}

	seen := make(map[string]bool)
	var out []wire.Row

	for _, row := range tbl.Select(q.Where, q.Columns) {
		if !seen[row] {
			seen[row] = true
			out = append(out, wire.StringRow(strings.Split(row, ",")...))
		}
	}

	for _, addr := range c.state.RingAddresses() {
		if addr == c.cfg.Self {
			continue
		}
		rows, _, err := c.dialInterNodeSelect(addr, q.Raw, wire.Weak, wire.RoleReplica)
		if err != nil {
			c.state.MarkDown(addr)
			rows = c.retryThroughSuccessors(addr, q, ks.ReplicationFactor)
		}
		for _, row := range rows {
			key := rowKeyString(row)
			if !seen[key] {
				seen[key] = true
				out = append(out, row)
			}
		}
	}
	return wire.ResultRows, out, nil
}

func (c *Coordinator) retryThroughSuccessors(downAddr string, q *cql.Query, rf int) []wire.Row {
	for _, alt := range c.state.ReplicasOf(downAddr, rf) {
		if alt == c.cfg.Self || alt == downAddr {
			continue
		}
		rows, _, err := c.dialInterNodeSelect(alt, q.Raw, wire.Weak, wire.RoleReplica)
		if err == nil {
			return rows
		}
	}
	return nil
}

func rowKeyString(r wire.Row) string {
	parts := make([]string, len(r))
	for i, cell := range r {
		parts[i] = string(cell)
	}
	return strings.Join(parts, ",")
}

// replicaReply is one replica's answer to a full-row read, used by the
// owner-local read path to pick the highest-timestamped copy and to
// read-repair the rest.
type replicaReply struct {
	addr string
	rows []string
	ts   int64
	ok   bool
}

// dispatchSelectOwner implements the WHERE-bearing SELECT row: hash cond1
// to find the owner, read full rows from the owner and its replicas,
// pick the highest-timestamped copy of each partition, read-repair any
// stale copy, then project to the client's requested columns.
func (c *Coordinator) dispatchSelectOwner(q *cql.Query, consistency wire.ConsistencyLevel) (wire.ResultKind, []wire.Row, error) {
	hash := ringToken(q.Where.Cond1.Value)
	owner, ok := c.state.Owner(hash)
	if !ok {
		return 0, nil, ringerr.New(ringerr.KindOwnerNotFound, "coordinator.dispatchSelectOwner")
	}
	ks, err := c.currentKeyspace()
	if err != nil {
		return 0, nil, err
	}
	tbl, err := ks.Table(q.Table)
	if err != nil {
		return 0, nil, err
	}

	if owner != c.cfg.Self {
		_, rows, err := c.dialInterNode(owner, q.Raw, consistency, wire.RoleResponsible)
		if err == nil {
			return wire.ResultRows, rows, nil
		}
		log.WithField("owner", owner).WithError(err).Warn("select forward to owner failed, trying surrogate path")
		c.state.MarkDown(owner)
		return c.surrogateSelect(q, consistency, owner, ks)
	}

	fullQuery := fullRowSelect(q)
	localFull := tbl.Select(q.Where, []string{"*"})
	localTs := c.state.Timestamp()

	replicas := c.state.Replicas(ks.ReplicationFactor)
	ch := make(chan replicaReply, len(replicas))
	for _, addr := range replicas {
		go func(addr string) {
			rows, ts, err := c.dialInterNodeSelect(addr, fullQuery, consistency, wire.RoleReplica)
			if err != nil {
				c.state.MarkDown(addr)
				ch <- replicaReply{addr: addr, ok: false}
				return
			}
			ch <- replicaReply{addr: addr, rows: rowsToStrings(rows), ts: ts, ok: true}
		}(addr)
	}

	collected := []replicaReply{{addr: c.cfg.Self, rows: localFull, ts: localTs, ok: true}}
	if consistency == wire.Strong {
		needed := quorumAdditional(ks.ReplicationFactor)
		got, reported := 0, 0
		for reported < len(replicas) && got < needed {
			r := <-ch
			reported++
			if r.ok {
				got++
				collected = append(collected, r)
			}
		}
		if got < needed {
			return 0, nil, ringerr.New(ringerr.KindConsistencyNotMet, "coordinator.dispatchSelectOwner")
		}
		go drainReplies(ch, len(replicas)-reported)
	} else {
		go func() {
			for i := 0; i < len(replicas); i++ {
				<-ch
			}
		}()
	}

	winning, winningTs := pickWinning(collected)
	c.readRepair(ks, tbl, collected, winning, winningTs)

	projected := make([]wire.Row, 0, len(winning))
	for _, full := range winning {
		projected = append(projected, wire.StringRow(strings.Split(projectRow(full, tbl.Headers, q.Columns), ",")...))
	}
	return wire.ResultRows, projected, nil
}

// surrogateSelect is the read-side analogue of surrogateWrite: when the
// owner cannot be reached, read directly from its replicas and apply the
// same highest-timestamp-wins rule.
func (c *Coordinator) surrogateSelect(q *cql.Query, consistency wire.ConsistencyLevel, downOwner string, ks *store.Keyspace) (wire.ResultKind, []wire.Row, error) {
	tbl, err := ks.Table(q.Table)
	if err != nil {
		return 0, nil, err
	}
	fullQuery := fullRowSelect(q)
	ownerReplicas := c.state.ReplicasOf(downOwner, ks.ReplicationFactor)
	candidates := withoutAddr(ownerReplicas, c.cfg.Self)

	type reply struct {
		rows []string
		ts   int64
	}
	var collected []reply
	if contains(ownerReplicas, c.cfg.Self) {
		collected = append(collected, reply{rows: tbl.Select(q.Where, []string{"*"}), ts: c.state.Timestamp()})
	}
	for _, addr := range candidates {
		rows, ts, err := c.dialInterNodeSelect(addr, fullQuery, consistency, wire.RoleReplica)
		if err != nil {
			c.state.MarkDown(addr)
			continue
		}
		collected = append(collected, reply{rows: rowsToStrings(rows), ts: ts})
	}
	if len(collected) == 0 {
		return 0, nil, ringerr.New(ringerr.KindConsistencyNotMet, "coordinator.surrogateSelect")
	}

	var best []string
	var bestTs int64 = -1
	for _, r := range collected {
		if r.ts > bestTs {
			bestTs = r.ts
			best = r.rows
		}
	}
	projected := make([]wire.Row, 0, len(best))
	for _, full := range best {
		projected = append(projected, wire.StringRow(strings.Split(projectRow(full, tbl.Headers, q.Columns), ",")...))
	}
	return wire.ResultRows, projected, nil
}

func drainReplies(ch chan replicaReply, remaining int) {
	for i := 0; i < remaining; i++ {
		<-ch
	}
}

func rowsToStrings(rows []wire.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = rowKeyString(r)
	}
	return out
}

// pickWinning groups every responder's rows by (row-set) timestamp and
// returns the highest-timestamped set, per spec §4.6's read-repair rule.
func pickWinning(collected []replicaReply) ([]string, int64) {
	var winning []string
	var winningTs int64 = -1
	for _, r := range collected {
		if !r.ok {
			continue
		}
		if r.ts > winningTs {
			winningTs = r.ts
			winning = r.rows
		}
	}
	return winning, winningTs
}

// readRepair issues one UPDATE per winning row to every responder whose
// reported timestamp fell behind winningTs; the repair to self runs
// synchronously, repairs to remote replicas run concurrently, per §4.6.
func (c *Coordinator) readRepair(ks *store.Keyspace, tbl *store.Table, collected []replicaReply, winning []string, winningTs int64) {
	var wg sync.WaitGroup
	for _, r := range collected {
		if !r.ok || r.ts >= winningTs {
			continue
		}
		for _, full := range winning {
			query, err := buildRepairUpdate(tbl.Name, tbl.Headers, full)
			if err != nil {
				continue
			}
			if r.addr == c.cfg.Self {
				q, perr := cql.Parse(query)
				if perr == nil {
					applyUpdate(ks, q)
				}
				continue
			}
			wg.Add(1)
			go func(addr, query string) {
				defer wg.Done()
				if _, _, err := c.dialInterNode(addr, query, wire.Weak, wire.RoleReplica); err != nil {
					log.WithField("peer", addr).WithError(err).Warn("read-repair update failed")
				}
			}(r.addr, query)
		}
	}
	wg.Wait()
}

// fullRowSelect rewrites q's raw text to project every column, so the
// internal read-repair comparison has full rows to work with regardless
// of the client's original projection.
func fullRowSelect(q *cql.Query) string {
	upper := strings.ToUpper(q.Raw)
	idx := strings.Index(upper, "FROM")
	return "SELECT * " + q.Raw[idx:]
}

func projectRow(full string, headers []string, projection []string) string {
	fields := strings.Split(full, ",")
	if len(projection) == 1 && projection[0] == "*" {
		return full
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	out := make([]string, 0, len(projection))
	for _, col := range projection {
		if i, ok := index[col]; ok && i < len(fields) {
			out = append(out, fields[i])
		}
	}
	return strings.Join(out, ",")
}

// buildRepairUpdate renders an UPDATE that sets every non-key column of
// full back to its winning value, targeted by the partition key and the
// clustering column, per §4.6.
func buildRepairUpdate(table string, headers []string, full string) (string, error) {
	fields := strings.Split(full, ",")
	if len(fields) != len(headers) {
		return "", ringerr.New(ringerr.KindWireMalformed, "coordinator.buildRepairUpdate: arity")
	}
	partitionKey := fields[0]
	ckIdx := store.ClusteringIndex(partitionKey)
	if ckIdx >= len(fields) {
		return "", ringerr.New(ringerr.KindWireMalformed, "coordinator.buildRepairUpdate: clustering index")
	}

	var sets []string
	for i, h := range headers {
		if i == 0 || i == ckIdx {
			continue
		}
		sets = append(sets, h+" = "+quoteCell(fields[i]))
	}
	if len(sets) == 0 {
		sets = append(sets, headers[0]+" = "+quoteCell(fields[0]))
	}

	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") +
		" WHERE " + headers[0] + " = " + quoteCell(fields[0]) +
		" AND " + headers[ckIdx] + " = " + quoteCell(fields[ckIdx]), nil
}

func quoteCell(v string) string {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return v
	}
	return "'" + v + "'"
}
