// Command ringkeepd starts one ring node: it loads its TLS material and
// seed list, builds the node-local state, starts the gossip anti-entropy
// loop, and serves the three TLS listeners described in spec §4.8 until
// terminated. Grounded on the teacher's cmd/server/main.go for the
// flag-parsing-then-wire-everything-then-wait-for-signal shape.
package main

import (
	"crypto/tls"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"ringkeep/internal/coordinator"
	"ringkeep/internal/gossip"
	"ringkeep/internal/httpapi"
	"ringkeep/internal/listener"
	"ringkeep/internal/logging"
	"ringkeep/internal/nodestate"
	"ringkeep/internal/replica"
	"ringkeep/internal/storage"
)

// seedPeersFromCache primes state's membership view from the peer cache
// left by a previous run of this process, so gossip has somewhere to
// start beyond the seeds file.
func seedPeersFromCache(state *nodestate.State, cache *storage.PeerCache) {
	peers, err := cache.LoadAll()
	if err != nil {
		logging.For("main").WithError(err).Warn("peer cache load failed, starting cold")
		return
	}
	for addr, p := range peers {
		if addr == state.Self {
			continue
		}
		state.ObserveDigestEntry(addr, p.Incarnation, p.Status)
	}
}

// startCacheSnapshots periodically persists the current membership view
// so the next restart has a warm cache. Returns a stop function.
func startCacheSnapshots(state *nodestate.State, cache *storage.PeerCache) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cache.SaveAll(state.Peers())
			case <-stop:
				cache.SaveAll(state.Peers())
				return
			}
		}
	}()
	return func() { close(stop) }
}

func main() {
	os.Exit(run())
}

func run() int {
	logging.Init()
	logging.SetInstanceID(uuid.NewString())
	log := logging.For("main")

	self := flag.String("address", "", "this node's address, e.g. 10.0.0.1 (required)")
	dataDir := flag.String("data-dir", "./data", "root directory for table CSV storage")
	keyspace := flag.String("keyspace", "AEROLINEA", "the node's fixed keyspace name")
	seedsFile := flag.String("seeds-file", "", "path to a file of seed addresses, one per line")
	tlsDir := flag.String("tls-dir", "./tls", "directory holding server.crt and server.key")
	clientPort := flag.String("client-port", "9042", "client<->coordinator port")
	interNodePort := flag.String("internode-port", "9043", "coordinator<->replica port")
	gossipPort := flag.String("gossip-port", "9044", "gossip anti-entropy port")
	httpPort := flag.String("http-port", "8080", "plaintext HTTP port for the observability side channel (status/ring/gossip/ws)")
	insecureSkipVerify := flag.Bool("insecure-skip-verify", true, "skip peer certificate verification for inter-node TLS (self-signed cluster certs)")
	flag.Parse()

	if *self == "" {
		log.Error("-address is required")
		return 1
	}

	seeds, err := loadSeeds(*seedsFile)
	if err != nil {
		log.WithError(err).Error("failed to load seeds file")
		return 1
	}

	tlsConfig, err := loadTLS(*tlsDir, *insecureSkipVerify)
	if err != nil {
		log.WithError(err).Error("failed to load TLS material")
		return 1
	}

	generation := float64(time.Now().Unix())
	state := nodestate.New(*self, *dataDir, *keyspace, generation)
	if _, err := state.Ensure(*keyspace, 1); err != nil {
		log.WithError(err).Error("failed to initialize keyspace")
		return 1
	}

	peerCache, err := storage.OpenPeerCache(*dataDir, *self)
	if err != nil {
		log.WithError(err).Error("failed to open peer cache")
		return 1
	}
	defer peerCache.Close()
	seedPeersFromCache(state, peerCache)
	stopCacheSnapshots := startCacheSnapshots(state, peerCache)
	defer stopCacheSnapshots()

	coord := coordinator.New(coordinator.Config{
		Self:          *self,
		InterNodePort: *interNodePort,
		TLS:           tlsConfig,
	}, state)

	replicaH := replica.New(state, coord)

	gossipManager := gossip.New(gossip.Config{
		Self:          *self,
		GossipPort:    *gossipPort,
		InterNodePort: *interNodePort,
		Seeds:         seeds,
		TLS:           tlsConfig,
	}, state)
	gossipManager.Start()
	defer gossipManager.Stop()

	srv := listener.New(listener.Config{
		ClientPort:    *clientPort,
		InterNodePort: *interNodePort,
		GossipPort:    *gossipPort,
		TLS:           tlsConfig,
	}, coord, replicaH, gossipManager)
	if err := srv.Start(); err != nil {
		log.WithError(err).Error("failed to start listeners")
		return 1
	}
	defer srv.Close()

	httpSrv := &http.Server{Addr: ":" + *httpPort, Handler: httpapi.New(state).Router()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("observability HTTP server stopped")
		}
	}()
	defer httpSrv.Close()

	log.WithField("address", *self).WithField("keyspace", *keyspace).
		WithField("seeds", seeds).Info("ringkeepd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")
	return 0
}

func loadSeeds(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seeds []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			seeds = append(seeds, line)
		}
	}
	return seeds, nil
}

func loadTLS(dir string, insecureSkipVerify bool) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(dir+"/server.crt", dir+"/server.key")
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: insecureSkipVerify,
	}, nil
}
