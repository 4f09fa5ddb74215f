package gossip

import (
	"fmt"
	"strconv"
	"strings"

	"ringkeep/internal/ring"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/store"
	"ringkeep/internal/transport"
	"ringkeep/internal/wire"
)

// triggerRedistribution runs join redistribution for newAddr in the
// background once it has been observed becoming Normal from any other
// status (first join or return from Down). Only the address that is newAddr's ring predecessor acts as
// distributor; every other node's call is a silent no-op.
func (m *Manager) triggerRedistribution(newAddr string) {
	go func() {
		if err := m.redistribute(newAddr); err != nil {
			log.WithField("peer", newAddr).WithError(err).Warn("join redistribution failed")
		}
	}()
}

// redistribute implements spec §4.5's join-redistribution rule: the
// distributor (self's ring predecessor of newAddr) walks its local
// tables and, for every row whose partition-key hash is at or below
// newAddr's token, forwards an INSERT to newAddr and a DELETE to the
// replica that now falls out of the replication window. Static tables are
// skipped.
func (m *Manager) redistribute(newAddr string) error {
	token := ring.Token(newAddr)
	distributor, ok := m.state.Predecessor(token)
	if !ok || distributor != m.cfg.Self {
		return nil
	}

	for _, ks := range m.state.Registry.Keyspaces() {
		replicas := m.state.Replicas(ks.ReplicationFactor)
		if len(replicas) == 0 {
			continue
		}
		fallingOut := replicas[len(replicas)-1]

		for _, tbl := range ks.Tables() {
			if tbl.Static {
				continue
			}
			if err := m.redistributeTable(ks.Name, tbl, token, newAddr, fallingOut); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) redistributeTable(keyspace string, tbl *store.Table, newToken uint32, newAddr, fallingOut string) error {
	for _, row := range tbl.AllRows() {
		fields := strings.Split(row, ",")
		if len(fields) == 0 {
			continue
		}
		if ring.Token(fields[0]) > newToken {
			continue
		}

		insertReq := wire.InterNodeRequest{
			Query:       buildInsertQuery(tbl.Name, tbl.Headers, fields),
			Consistency: wire.Strong,
			Role:        wire.RoleReplica,
		}
		insertAddr := peerPortAddress(newAddr, m.cfg.InterNodePort)
		if _, _, err := transport.InterNodeCall(m.cfg.TLS, insertAddr, 0, insertReq); err != nil {
			return ringerr.Wrap(ringerr.KindRedistributeFailed, "gossip.redistributeTable: insert", err)
		}

		deleteReq := wire.InterNodeRequest{
			Query:       buildDeleteQuery(tbl.Name, tbl.Headers, fields),
			Consistency: wire.Strong,
			Role:        wire.RoleReplica,
		}
		deleteAddr := peerPortAddress(fallingOut, m.cfg.InterNodePort)
		if _, _, err := transport.InterNodeCall(m.cfg.TLS, deleteAddr, 0, deleteReq); err != nil {
			return ringerr.Wrap(ringerr.KindRedistributeFailed, "gossip.redistributeTable: delete", err)
		}
	}
	return nil
}

func buildInsertQuery(tableName string, headers, fields []string) string {
	cols := make([]string, 0, len(headers))
	vals := make([]string, 0, len(headers))
	for i, h := range headers {
		if i >= len(fields) {
			break
		}
		cols = append(cols, h)
		vals = append(vals, quoteValue(fields[i]))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableName, strings.Join(cols, ", "), strings.Join(vals, ", "))
}

func buildDeleteQuery(tableName string, headers, fields []string) string {
	partitionKey := fields[0]
	idx := store.ClusteringIndex(partitionKey)

	var clusteringHeader, clusteringValue string
	if idx < len(headers) && idx < len(fields) {
		clusteringHeader, clusteringValue = headers[idx], fields[idx]
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s AND %s = %s",
		tableName, headers[0], quoteValue(partitionKey), clusteringHeader, quoteValue(clusteringValue))
}

// quoteValue renders a stored cell back into CQL literal form: bare for
// integers, single-quoted otherwise, matching what the parser accepts.
func quoteValue(v string) string {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return v
	}
	return "'" + v + "'"
}
