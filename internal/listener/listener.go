// Package listener runs the three TLS sockets described in spec §4.8: the
// client-facing port (STARTUP/READY handshake then a QUERY/RESULT loop
// per connection), the inter-node port (one InterNodeRequest per
// connection, served by the replica package), and the gossip port (one
// SYN/ACK/ACK2 exchange per connection, served by the gossip package).
// Grounded on the teacher's internal/api/handler.go for the
// accept-loop-spawns-goroutine-per-connection shape, adapted from gin's
// HTTP router onto raw TLS listeners for the three binary protocols this
// system actually speaks.
package listener

import (
	"crypto/tls"
	"net"

	"ringkeep/internal/coordinator"
	"ringkeep/internal/gossip"
	"ringkeep/internal/logging"
	"ringkeep/internal/replica"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/wire"
)

var log = logging.For("listener")

// Config names the three ports and the TLS material every listener
// shares.
type Config struct {
	ClientPort    string
	InterNodePort string
	GossipPort    string
	TLS           *tls.Config
}

// Server owns the three listeners and their shared dependencies.
type Server struct {
	cfg      Config
	coord    *coordinator.Coordinator
	replicaH *replica.Handler
	gossipM  *gossip.Manager

	clientLn    net.Listener
	interNodeLn net.Listener
	gossipLn    net.Listener
}

// New builds a Server. Listeners are not opened until Start is called.
func New(cfg Config, coord *coordinator.Coordinator, replicaH *replica.Handler, gossipM *gossip.Manager) *Server {
	return &Server{cfg: cfg, coord: coord, replicaH: replicaH, gossipM: gossipM}
}

// Start opens all three TLS listeners and begins accepting connections in
// background goroutines. Returns once every listener is bound, or the
// first bind error.
func (s *Server) Start() error {
	var err error
	s.clientLn, err = tls.Listen("tcp", ":"+s.cfg.ClientPort, s.cfg.TLS)
	if err != nil {
		return ringerr.Wrap(ringerr.KindTlsHandshake, "listener.Start: client port", err)
	}
	s.interNodeLn, err = tls.Listen("tcp", ":"+s.cfg.InterNodePort, s.cfg.TLS)
	if err != nil {
		return ringerr.Wrap(ringerr.KindTlsHandshake, "listener.Start: inter-node port", err)
	}
	s.gossipLn, err = tls.Listen("tcp", ":"+s.cfg.GossipPort, s.cfg.TLS)
	if err != nil {
		return ringerr.Wrap(ringerr.KindTlsHandshake, "listener.Start: gossip port", err)
	}

	go s.acceptLoop(s.clientLn, s.serveClient)
	go s.acceptLoop(s.interNodeLn, s.serveInterNode)
	go s.acceptLoop(s.gossipLn, s.serveGossip)
	log.WithField("client", s.cfg.ClientPort).WithField("internode", s.cfg.InterNodePort).
		WithField("gossip", s.cfg.GossipPort).Info("listeners started")
	return nil
}

// Close shuts down all three listeners.
func (s *Server) Close() {
	if s.clientLn != nil {
		s.clientLn.Close()
	}
	if s.interNodeLn != nil {
		s.interNodeLn.Close()
	}
	if s.gossipLn != nil {
		s.gossipLn.Close()
	}
}

func (s *Server) acceptLoop(ln net.Listener, serve func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.WithError(err).Debug("listener accept loop exiting")
			return
		}
		go serve(conn)
	}
}

func (s *Server) serveInterNode(conn net.Conn) {
	if err := s.replicaH.HandleConn(conn); err != nil {
		log.WithError(err).Warn("inter-node connection error")
	}
}

func (s *Server) serveGossip(conn net.Conn) {
	defer conn.Close()
	if err := s.gossipM.HandleConn(conn); err != nil {
		log.WithError(err).Warn("gossip connection error")
	}
}

// serveClient runs the STARTUP/READY handshake then loops reading QUERY
// frames until the connection closes, per spec §4.1/§4.8.
func (s *Server) serveClient(conn net.Conn) {
	defer conn.Close()

	frame, err := wire.ReadClientFrame(conn)
	if err != nil {
		log.WithError(err).Warn("client handshake read failed")
		return
	}
	if frame.Opcode != wire.OpStartup {
		log.Warn("client handshake: expected STARTUP")
		return
	}
	if _, err := wire.DecodeStartup(frame.Body); err != nil {
		log.WithError(err).Warn("client handshake: bad STARTUP body")
		return
	}
	if err := wire.WriteClientFrame(conn, true, frame.StreamID, wire.OpReady, nil); err != nil {
		log.WithError(err).Warn("client handshake: READY write failed")
		return
	}

	for {
		frame, err := wire.ReadClientFrame(conn)
		if err != nil {
			return
		}
		if frame.Opcode != wire.OpQuery {
			log.Warn("client loop: expected QUERY")
			return
		}
		query, consistency, err := wire.DecodeQuery(frame.Body)
		if err != nil {
			log.WithError(err).Warn("client loop: bad QUERY body")
			return
		}

		kind, rows, dispatchErr := s.coord.Dispatch(query, consistency)
		if dispatchErr != nil {
			log.WithError(dispatchErr).WithField("query", query).Warn("query failed")
			wire.WriteClientFrame(conn, true, frame.StreamID, wire.OpError, wire.EncodeError(dispatchErr.Error()))
			return
		}

		var body []byte
		switch {
		case kind == wire.ResultRows:
			// EncodeRowsResult only needs the column count, not real names;
			// the wire format carries no per-column name metadata.
			body, err = wire.EncodeRowsResult(make([]string, columnCountOf(rows)), rows)
			if err != nil {
				body = wire.EncodeVoidResult()
			}
		default:
			body = wire.EncodeVoidResult()
		}

		if err := wire.WriteClientFrame(conn, true, frame.StreamID, wire.OpResult, body); err != nil {
			return
		}
	}
}

func columnCountOf(rows []wire.Row) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}
