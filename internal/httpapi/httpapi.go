// Package httpapi exposes a read-only observability side channel over the
// node's own state: ring membership, gossip status, and a live WebSocket
// feed, all as JSON. It never touches table data or the query path — that
// traffic speaks the three binary protocols in internal/listener. Grounded
// on the teacher's internal/api/handler.go for the gin-router-plus-
// websocket-ticker shape, trimmed to what a CQL-speaking ring actually
// wants to expose for operators.
package httpapi

import (
	"net/http"
	"time"

	"ringkeep/internal/logging"
	"ringkeep/internal/membership"
	"ringkeep/internal/nodestate"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var log = logging.For("httpapi")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the observability endpoints for one node's state.
type Handler struct {
	state *nodestate.State
}

// New builds a Handler bound to state.
func New(state *nodestate.State) *Handler {
	return &Handler{state: state}
}

// Router builds the gin engine for this handler: /status, /ring,
// /gossip/status, and /ws.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/status", h.GetStatus)
	r.GET("/ring", h.GetRing)
	r.GET("/gossip/status", h.GetGossipStatus)
	r.GET("/ws", h.WebSocketHandler)
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// GetStatus reports this node's address, ring token, current logical
// timestamp, and keyspace registry summary.
func (h *Handler) GetStatus(c *gin.Context) {
	keyspaces := h.state.Registry.Keyspaces()
	c.JSON(http.StatusOK, gin.H{
		"address":    h.state.Self,
		"token":      h.state.Token,
		"timestamp":  h.state.Timestamp(),
		"keyspaces":  keyspaces,
		"ring_size":  len(h.state.RingAddresses()),
		"queried_at": time.Now().Unix(),
	})
}

// GetRing reports the addresses currently on the ring and this node's
// known peer metadata.
func (h *Handler) GetRing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"addresses": h.state.RingAddresses(),
		"peers":     peerView(h.state.Peers()),
	})
}

// GetGossipStatus reports per-peer incarnation and status, the gossip
// digest view this node currently holds.
func (h *Handler) GetGossipStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"self":   h.state.Self,
		"digest": h.state.Digest(),
		"peers":  peerView(h.state.Peers()),
	})
}

func peerView(peers map[string]membership.Peer) []gin.H {
	out := make([]gin.H, 0, len(peers))
	for addr, p := range peers {
		out = append(out, gin.H{
			"address":    addr,
			"status":     p.Status.String(),
			"generation": p.Generation,
			"version":    p.Version,
		})
	}
	return out
}

// WebSocketHandler streams a ring/peer snapshot on connect, then a
// heartbeat every 2 seconds until the client disconnects.
func (h *Handler) WebSocketHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	snapshot := func(kind string) gin.H {
		return gin.H{
			"type":      kind,
			"timestamp": time.Now().Unix(),
			"self":      h.state.Self,
			"addresses": h.state.RingAddresses(),
			"peers":     peerView(h.state.Peers()),
		}
	}

	if err := conn.WriteJSON(snapshot("ring_state")); err != nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(snapshot("heartbeat")); err != nil {
			log.WithError(err).Debug("websocket write failed, closing")
			return
		}
	}
}
