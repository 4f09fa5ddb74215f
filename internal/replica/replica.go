// Package replica implements the inter-node request handler (C7): the
// server side of the coordinator->replica wire protocol. A connection on
// the inter-node port carries one InterNodeRequest; role=responsible
// re-enters the coordinator's own dispatch table (this node is being
// asked to act as coordinator for the query), role=replica applies the
// query directly against local storage and acknowledges. Grounded on the
// teacher's internal/api/handler.go for the one-request-per-connection,
// decode-dispatch-encode handler shape.
package replica

import (
	"net"
	"strings"

	"ringkeep/internal/coordinator"
	"ringkeep/internal/cql"
	"ringkeep/internal/logging"
	"ringkeep/internal/nodestate"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/transport"
	"ringkeep/internal/wire"
)

var log = logging.For("replica")

// Handler applies role=replica requests against node-local storage and
// re-enters the coordinator for role=responsible requests.
type Handler struct {
	state *nodestate.State
	coord *coordinator.Coordinator
}

// New builds a Handler bound to state and the node's coordinator.
func New(state *nodestate.State, coord *coordinator.Coordinator) *Handler {
	return &Handler{state: state, coord: coord}
}

// HandleConn serves exactly one InterNodeRequest on conn, per spec §4.7.
func (h *Handler) HandleConn(conn net.Conn) error {
	defer conn.Close()

	_, streamID, length, err := wire.ReadInterNodeHeader(conn)
	if err != nil {
		return err
	}
	body := make([]byte, length)
	if _, err := transport.ReadFull(conn, body); err != nil {
		return err
	}
	req, err := wire.DecodeInterNodeRequest(body)
	if err != nil {
		return err
	}

	if req.Role == wire.RoleResponsible {
		kind, rows, err := h.coord.Dispatch(req.Query, req.Consistency)
		if err != nil {
			log.WithError(err).WithField("query", req.Query).Warn("responsible dispatch failed")
			return err
		}
		if kind == wire.ResultRows {
			return wire.WriteInterNodeRows(conn, streamID, columnCountOf(rows), rows)
		}
		return wire.WriteInterNodeVoid(conn, streamID)
	}

	return h.applyReplica(conn, streamID, req.Query)
}

func columnCountOf(rows []wire.Row) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

// applyReplica handles role=replica: apply the query directly against
// this node's own shard and reply with an ACK (writes) or the matched
// rows plus a trailing timestamp (reads), per §4.1/§4.7.
func (h *Handler) applyReplica(conn net.Conn, streamID uint16, raw string) error {
	q, err := cql.Parse(raw)
	if err != nil {
		return err
	}

	switch q.Kind {
	case cql.CreateKeyspace:
		if _, err := h.state.Ensure(q.Keyspace, q.ReplicationFactor); err != nil {
			return err
		}
		h.state.BumpTimestamp()
		return wire.WriteAck(conn, streamID)

	case cql.CreateTable:
		ks, err := h.state.Registry.Keyspace(h.state.CurrentKeyspace)
		if err != nil {
			return err
		}
		if _, err := ks.Table(q.Table); err != nil {
			if !ringerr.Is(err, ringerr.KindTableNotFound) {
				return err
			}
			if _, err := ks.CreateTable(q.Table, q.Headers); err != nil {
				return err
			}
		}
		h.state.BumpTimestamp()
		return wire.WriteAck(conn, streamID)

	case cql.Insert, cql.Update, cql.Delete:
		ks, err := h.state.Registry.Keyspace(h.state.CurrentKeyspace)
		if err != nil {
			return err
		}
		if _, err := coordinator.ApplyWrite(ks, q); err != nil {
			return err
		}
		h.state.BumpTimestamp()
		return wire.WriteAck(conn, streamID)

	case cql.Select:
		ks, err := h.state.Registry.Keyspace(h.state.CurrentKeyspace)
		if err != nil {
			return err
		}
		tbl, err := ks.Table(q.Table)
		if err != nil {
			return err
		}
		rows := tbl.Select(q.Where, q.Columns)
		columnCount := len(q.Columns)
		if len(q.Columns) == 1 && q.Columns[0] == "*" {
			columnCount = len(tbl.Headers)
		}
		wireRows := make([]wire.Row, len(rows))
		for i, r := range rows {
			wireRows[i] = wire.StringRow(strings.Split(r, ",")...)
		}
		return wire.WriteSelectReply(conn, streamID, columnCount, wireRows, h.state.Timestamp())

	default:
		return ringerr.New(ringerr.KindQuerySyntax, "replica.applyReplica: unsupported kind")
	}
}

