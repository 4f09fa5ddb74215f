package gossip

import (
	"strings"

	"ringkeep/internal/ringerr"
	"ringkeep/internal/transport"
	"ringkeep/internal/wire"
)

// gossipWith runs one SYN/ACK/ACK2 exchange as initiator against target's
// gossip port, applying whatever the exchange reveals. Returns an error
// only when the connection itself could not be established or the wire
// protocol was violated — the caller marks target Down on any error, per
// spec §4.5's failure-marking rule.
func (m *Manager) gossipWith(target string) error {
	addr := peerPortAddress(target, m.cfg.GossipPort)
	conn, err := transport.Dial(m.cfg.TLS, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	digest := m.state.Digest()
	if err := wire.WriteSyn(conn, m.cfg.Self, digest); err != nil {
		return err
	}

	typ, length, err := wire.ReadGossipHeader(conn)
	if err != nil {
		return err
	}
	if typ != wire.GossipAck {
		return ringerr.New(ringerr.KindWireMalformed, "gossip.gossipWith: expected ACK")
	}
	body := make([]byte, length)
	if _, err := transport.ReadFull(conn, body); err != nil {
		return err
	}
	behindLine, freshLine, err := wire.DecodeAckGossip(body)
	if err != nil {
		return err
	}

	m.applyFullTuples(parseFullTuples(freshLine))

	ack2 := m.buildAnswerTuples(strings.Fields(behindLine))
	return wire.WriteAck2(conn, strings.Join(ack2, " "))
}

// buildAnswerTuples renders self's full tuple for every address the peer
// flagged as "behind on", answering ACK line 1 with ACK2.
func (m *Manager) buildAnswerTuples(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		p, ok := m.state.Peer(addr)
		if !ok {
			continue
		}
		out = append(out, formatFullTuple(p.Address, p.Incarnation, p.Status))
	}
	return out
}
