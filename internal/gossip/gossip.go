// Package gossip implements the anti-entropy SYN/ACK/ACK2 exchange that
// reconciles peer membership across the ring: a round loop picks up to two
// peers per round, runs the three-message exchange, and applies whatever
// the exchange reveals (joins, status transitions, join redistribution).
//
// This replaces the teacher's HTTP+JSON rumor-mongering gossip
// (communication.go/handler.go/probe.go as they stood) with the
// generation/version digest reconciliation this protocol specifies,
// following other_examples/8e4ab166_..._cassandra-transport-gossip.go for
// the SYN/ACK/ACK2 shape and keeping the teacher's manager-with-a-round-
// loop-goroutine structure.
package gossip

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"ringkeep/internal/logging"
	"ringkeep/internal/nodestate"
)

var log = logging.For("gossip")

// Config holds gossip's tunables. The round timings are fixed by spec: 10s
// peer-search budget, 5s inter-round sleep.
type Config struct {
	Self          string
	GossipPort    string
	InterNodePort string
	Seeds         []string
	TLS           *tls.Config

	RoundPeers  int
	RoundBudget time.Duration
	RoundSleep  time.Duration
}

// defaults fills in the fixed round timings when the caller left them zero.
func (c Config) defaults() Config {
	if c.RoundPeers == 0 {
		c.RoundPeers = 2
	}
	if c.RoundBudget == 0 {
		c.RoundBudget = 10 * time.Second
	}
	if c.RoundSleep == 0 {
		c.RoundSleep = 5 * time.Second
	}
	return c
}

// Manager runs the gossip round loop and answers inbound SYN/ACK/ACK2
// connections on the gossip listener's behalf.
type Manager struct {
	cfg   Config
	state *nodestate.State

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Manager bound to state. Call Start to begin the round loop.
func New(cfg Config, state *nodestate.State) *Manager {
	return &Manager{cfg: cfg.defaults(), state: state}
}

// Start launches the round loop in a background goroutine.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop cancels the round loop and waits for it to end at the next 5-second
// sleep boundary, per spec §4.5/§5's cooperative-cancellation rule.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	for {
		if ctx.Err() != nil {
			return
		}
		m.round(ctx)
		m.state.BumpSelfVersion()
		m.state.ClearRecentGossip()

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RoundSleep):
		}
	}
}

// round picks up to RoundPeers targets (retrying within RoundBudget if the
// ring currently offers none) and gossips with each concurrently.
func (m *Manager) round(ctx context.Context) {
	deadline := time.Now().Add(m.cfg.RoundBudget)
	var targets []string
	for {
		targets = m.state.PickGossipTargets(m.cfg.RoundPeers, m.cfg.Seeds)
		if len(targets) > 0 || time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, target := range targets {
		m.state.MarkRecentGossip(target)
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if err := m.gossipWith(addr); err != nil {
				log.WithField("peer", addr).WithError(err).Warn("gossip exchange failed, marking peer down")
				m.state.MarkDown(addr)
			}
		}(target)
	}
	wg.Wait()
}

// peerPortAddress rewrites a peer's identity address to the given port,
// since gossip, client and inter-node traffic to the same node land on
// three different listeners.
func peerPortAddress(identity, port string) string {
	host := identity
	if h, _, err := net.SplitHostPort(identity); err == nil {
		host = h
	}
	return net.JoinHostPort(host, port)
}

// applyFullTuples folds a set of (address, incarnation, status) facts
// learned from an ACK or ACK2 body into local state, triggering join
// redistribution for any address whose status turned Normal from any other
// status.
func (m *Manager) applyFullTuples(tuples []fullTuple) {
	for _, t := range tuples {
		_, becameNormal := m.state.ObserveDigestEntry(t.addr, t.inc, t.status)
		if becameNormal {
			m.triggerRedistribution(t.addr)
		}
	}
}
