package gossip

import (
	"net"
	"strings"

	"ringkeep/internal/ringerr"
	"ringkeep/internal/transport"
	"ringkeep/internal/wire"
)

// HandleConn runs the target side of one SYN/ACK/ACK2 exchange on a
// connection the gossip listener has already TLS-accepted. It owns the
// connection's lifetime: a single SYN/ACK/ACK2 round, then returns,
// leaving the close to the caller (spec §4.8's three-message gossip
// connection lifetime).
func (m *Manager) HandleConn(conn net.Conn) error {
	typ, length, err := wire.ReadGossipHeader(conn)
	if err != nil {
		return err
	}
	if typ != wire.GossipSyn {
		return ringerr.New(ringerr.KindWireMalformed, "gossip.HandleConn: expected SYN")
	}
	body := make([]byte, length)
	if _, err := transport.ReadFull(conn, body); err != nil {
		return err
	}
	senderIP, digest, err := wire.DecodeSyn(body)
	if err != nil {
		return err
	}

	behind, fresh := m.reconcile(parseDigest(digest))
	if err := wire.WriteAckGossip(conn, strings.Join(behind, " "), strings.Join(fresh, " ")); err != nil {
		return err
	}

	typ2, length2, err := wire.ReadGossipHeader(conn)
	if err != nil {
		return err
	}
	if typ2 != wire.GossipAck2 {
		return ringerr.New(ringerr.KindWireMalformed, "gossip.HandleConn: expected ACK2")
	}
	body2 := make([]byte, length2)
	if _, err := transport.ReadFull(conn, body2); err != nil {
		return err
	}
	m.applyFullTuples(parseFullTuples(wire.DecodeAck2(body2)))

	log.WithField("peer", senderIP).Debug("answered gossip round")
	return nil
}

// reconcile compares the initiator's digest entry-by-entry against local
// peer state, per spec §4.5: entries where the local record is missing or
// strictly older go into "behind" (I-am-behind-on-these, answered in
// ACK2); entries where the local record is newer or equal go into "fresh"
// as full tuples, alongside any address the initiator's digest omitted
// entirely.
func (m *Manager) reconcile(incoming []triple) (behind, fresh []string) {
	local := m.state.Peers()
	seen := make(map[string]bool, len(incoming))

	for _, t := range incoming {
		seen[t.addr] = true
		localPeer, known := local[t.addr]
		if !known || localPeer.Incarnation.Less(t.inc) {
			behind = append(behind, t.addr)
			continue
		}
		fresh = append(fresh, formatFullTuple(localPeer.Address, localPeer.Incarnation, localPeer.Status))
	}
	for addr, p := range local {
		if !seen[addr] {
			fresh = append(fresh, formatFullTuple(p.Address, p.Incarnation, p.Status))
		}
	}
	return behind, fresh
}
