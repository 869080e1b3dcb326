// Package server streams terrain and particle snapshots to websocket
// clients and queues their spawn/reset requests for the simulation loop.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/mod1/particles"
	"github.com/pthm-cable/mod1/terrain"
)

// Message types sent to clients.
const (
	TypeTerrain   = "terrain"
	TypeParticles = "particles"
)

// Client actions.
const (
	ActionSpawn = "spawn"
	ActionReset = "reset"
)

// TerrainMessage is sent once on connect and again when the terrain changes.
type TerrainMessage struct {
	Type       string    `json:"type"`
	Resolution int       `json:"resolution"`
	Min        float32   `json:"min"`
	Max        float32   `json:"max"`
	Heights    []float32 `json:"heights"`
}

// ParticlesMessage carries one frame of particles as [x, y, z, radius].
type ParticlesMessage struct {
	Type      string       `json:"type"`
	Tick      int64        `json:"tick"`
	Particles [][4]float32 `json:"particles"`
}

// Command is a request from a client.
type Command struct {
	Action string `json:"action"`
	Count  int    `json:"count,omitempty"`
}

// NewTerrainMessage builds the terrain message for a height grid.
func NewTerrainMessage(g *terrain.HeightGrid) *TerrainMessage {
	return &TerrainMessage{
		Type:       TypeTerrain,
		Resolution: g.Resolution,
		Min:        g.Min,
		Max:        g.Max,
		Heights:    g.Heights,
	}
}

// NewParticlesMessage builds a particle frame.
func NewParticlesMessage(tick int64, ps []particles.Particle) *ParticlesMessage {
	msg := &ParticlesMessage{
		Type:      TypeParticles,
		Tick:      tick,
		Particles: make([][4]float32, len(ps)),
	}
	for i, p := range ps {
		msg.Particles[i] = [4]float32{p.Position[0], p.Position[1], p.Position[2], p.Radius}
	}
	return msg
}

// Hub tracks connected clients. Writes to each connection are serialized
// by that connection's mutex.
type Hub struct {
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	terrainMu sync.RWMutex
	terrain   *TerrainMessage

	commands chan Command
}

// NewHub creates a hub whose command queue holds up to buffer requests.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		commands: make(chan Command, buffer),
	}
}

// Handler returns the HTTP handler serving /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// Commands returns the queue of client requests.
func (h *Hub) Commands() <-chan Command {
	return h.commands
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the connection, sends the current terrain and reads
// commands until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	h.clientsMu.Lock()
	h.clients[conn] = connMu
	h.clientsMu.Unlock()
	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, conn)
		h.clientsMu.Unlock()
	}()

	slog.Info("websocket client connected", "remote", r.RemoteAddr)

	h.terrainMu.RLock()
	tm := h.terrain
	h.terrainMu.RUnlock()
	if tm != nil {
		connMu.Lock()
		err := conn.WriteJSON(tm)
		connMu.Unlock()
		if err != nil {
			return
		}
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}
		h.enqueue(cmd)
	}
}

func (h *Hub) enqueue(cmd Command) {
	switch cmd.Action {
	case ActionSpawn, ActionReset:
	default:
		slog.Warn("ignoring unknown client action", "action", cmd.Action)
		return
	}

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping", "action", cmd.Action)
	}
}

// SetTerrain stores the terrain sent to new clients and pushes it to
// everyone already connected.
func (h *Hub) SetTerrain(msg *TerrainMessage) {
	h.terrainMu.Lock()
	h.terrain = msg
	h.terrainMu.Unlock()
	h.broadcast(msg)
}

// BroadcastParticles sends a particle frame to all clients.
func (h *Hub) BroadcastParticles(tick int64, ps []particles.Particle) {
	h.broadcast(NewParticlesMessage(tick, ps))
}

// broadcast writes v to every client, dropping clients whose write fails.
func (h *Hub) broadcast(v any) {
	var failed []*websocket.Conn

	h.clientsMu.RLock()
	for conn, mu := range h.clients {
		mu.Lock()
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		err := conn.WriteJSON(v)
		mu.Unlock()
		if err != nil {
			failed = append(failed, conn)
		}
	}
	h.clientsMu.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.clientsMu.Lock()
	for _, conn := range failed {
		delete(h.clients, conn)
		conn.Close()
	}
	h.clientsMu.Unlock()
}

// ListenAndServe serves the hub on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h *Hub) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("websocket server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
