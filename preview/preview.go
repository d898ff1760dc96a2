// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package preview broadcasts the frames transmitted on a channel Line to
// websocket clients as pixel images.
package preview

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/matrix"
	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/logging"
	"github.com/danjacques/goledstrip/timing"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// DefaultWriteTimeout is the default amount of time allowed to write a frame
// to a single client.
const DefaultWriteTimeout = 200 * time.Millisecond

// clientQueueDepth is the number of frames buffered for a client. When a
// client's queue is full, new frames are skipped for that client.
const clientQueueDepth = 4

// Config configures a Hub.
type Config struct {
	// Profile is the timing profile that the frames were encoded with.
	Profile timing.Profile
	// TickRate is the tick rate of the frames' Symbols.
	TickRate physic.Frequency

	// Resolution is the resolution of the previewed matrix.
	Resolution matrix.Resolution
	// Layout maps matrix points to strip indices. If nil, a Serpentine layout
	// is used.
	Layout matrix.Layout

	// WriteTimeout is the per-client write timeout. If zero,
	// DefaultWriteTimeout is used.
	WriteTimeout time.Duration

	// Logger, if not nil, is the logger to use.
	Logger logging.L
}

// Frame is a single previewed frame, as sent to clients.
type Frame struct {
	// ID is the frame's sequence number, starting at 1.
	ID uint64 `json:"frame_id"`
	// X is the width of the frame, in pixels.
	X int `json:"x"`
	// Y is the height of the frame, in pixels.
	Y int `json:"y"`
	// RGB holds X*Y red, green, blue triples in row-major order.
	RGB []byte `json:"rgb"`
}

// Hub is a channel.Line that decodes each frame written to it and broadcasts
// the result to its websocket clients.
//
// Hub is an http.Handler that upgrades requests to websocket connections.
type Hub struct {
	cfg      Config
	logger   logging.L
	dec      *protocol.Decoder
	layout   matrix.Layout
	upgrader websocket.Upgrader
	started  time.Time

	// pending holds the Symbols of the frame being built. It is only accessed
	// by the Line's writer.
	pending []protocol.Symbol
	pb      pixel.Buffer

	mu      sync.Mutex
	clients map[*client]struct{}
	frameID uint64
	last    []byte
	dropped uint64
	skipped uint64
	closed  bool
}

// frameConn is the part of a websocket connection that a client writes to.
type frameConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client is a connected preview client. Its frames are written by its own
// goroutine, so a slow client never delays the Line's writer.
type client struct {
	conn  frameConn
	name  string
	sendC chan []byte
}

var _ channel.Line = (*Hub)(nil)

// New creates a new Hub.
func New(cfg Config) (*Hub, error) {
	if !cfg.Resolution.IsValid() {
		return nil, errors.Errorf("invalid resolution %s", cfg.Resolution)
	}

	dec, err := protocol.NewDecoder(cfg.Profile, cfg.TickRate)
	if err != nil {
		return nil, errors.Wrap(err, "building decoder")
	}

	layout := cfg.Layout
	if layout == nil {
		layout = matrix.Serpentine(cfg.Resolution)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	return &Hub{
		cfg:    cfg,
		logger: logging.Must(cfg.Logger),
		dec:    dec,
		layout: layout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started: time.Now(),
		pb:      pixel.Buffer{Order: cfg.Profile.Order},
		clients: make(map[*client]struct{}),
	}, nil
}

// WriteBlock implements channel.Line.
func (h *Hub) WriteBlock(block []protocol.Symbol) error {
	h.pending = append(h.pending, block...)
	return nil
}

// AbortFrame implements channel.Line. The pending frame is discarded.
func (h *Hub) AbortFrame() { h.pending = h.pending[:0] }

// EndFrame implements channel.Line, broadcasting the pending frame.
//
// A frame that cannot be decoded is logged and dropped. It is not treated as
// a Line failure.
func (h *Hub) EndFrame() error {
	defer func() {
		h.pending = h.pending[:0]
	}()

	data, err := h.dec.Decode(h.pending)
	if err != nil {
		h.logger.Warnf("Dropping undecodable preview frame: %s", err)
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return nil
	}
	h.pb.UseBytes(data)
	rgb := h.render()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return channel.ErrClosed
	}

	h.frameID++
	h.last = rgb
	msg, err := json.Marshal(h.frameLocked())
	if err != nil {
		return errors.Wrap(err, "encoding frame")
	}
	for c := range h.clients {
		h.queueLocked(c, msg)
	}
	return nil
}

// render lays the current pixel buffer out as row-major RGB triples.
func (h *Hub) render() []byte {
	res := h.cfg.Resolution
	rgb := make([]byte, 0, res.Count()*3)
	for y := 0; y < res.Y; y++ {
		for x := 0; x < res.X; x++ {
			p := h.pb.Pixel(h.layout.Index(matrix.Point{X: x, Y: y}))
			rgb = append(rgb, p.Red, p.Green, p.Blue)
		}
	}
	return rgb
}

func (h *Hub) frameLocked() *Frame {
	return &Frame{
		ID:  h.frameID,
		X:   h.cfg.Resolution.X,
		Y:   h.cfg.Resolution.Y,
		RGB: h.last,
	}
}

// queueLocked hands msg to c's writer without blocking. If c is behind, the
// frame is skipped for c.
func (h *Hub) queueLocked(c *client, msg []byte) {
	select {
	case c.sendC <- msg:
	default:
		h.skipped++
	}
}

// addClientLocked registers conn and starts its writer.
func (h *Hub) addClientLocked(conn frameConn, name string) *client {
	c := &client{
		conn:  conn,
		name:  name,
		sendC: make(chan []byte, clientQueueDepth),
	}
	h.clients[c] = struct{}{}
	go h.writeClient(c)
	return c
}

// removeClientLocked disconnects c, if it is still connected.
func (h *Hub) removeClientLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.sendC)
	_ = c.conn.Close()
}

// writeClient writes c's queued frames until c is removed. A client that fails
// a write is removed.
func (h *Hub) writeClient(c *client) {
	for msg := range c.sendC {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debugf("Dropping preview client %s: %s", c.name, err)
			h.mu.Lock()
			h.removeClientLocked(c)
			h.mu.Unlock()
		}
	}
}

// Close implements channel.Line, disconnecting all clients.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		h.removeClientLocked(c)
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket connection and registers it as
// a client. The client is immediately sent the most recent frame, if there is
// one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Warnf("Failed to upgrade preview connection from %s: %s", req.RemoteAddr, err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	c := h.addClientLocked(conn, conn.RemoteAddr().String())
	if h.last != nil {
		if msg, err := json.Marshal(h.frameLocked()); err == nil {
			h.queueLocked(c, msg)
		}
	}
	h.mu.Unlock()
	h.logger.Debugf("Preview client connected from %s.", c.name)

	// Clients do not send anything meaningful; read until they go away so that
	// control messages are handled.
	go func() {
		defer func() {
			h.mu.Lock()
			h.removeClientLocked(c)
			h.mu.Unlock()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Health is the status reported by HealthHandler.
type Health struct {
	FrameID    uint64  `json:"frame_id"`
	Dropped    uint64  `json:"dropped"`
	Skipped    uint64  `json:"skipped"`
	Clients    int     `json:"clients"`
	Resolution string  `json:"resolution"`
	UptimeSecs float64 `json:"uptime_s"`
}

// Health returns the Hub's current status.
func (h *Hub) Health() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Health{
		FrameID:    h.frameID,
		Dropped:    h.dropped,
		Skipped:    h.skipped,
		Clients:    len(h.clients),
		Resolution: h.cfg.Resolution.String(),
		UptimeSecs: time.Since(h.started).Seconds(),
	}
}

// HealthHandler returns an http.Handler that reports the Hub's Health as JSON.
func (h *Hub) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.Health()); err != nil {
			h.logger.Warnf("Failed to write health response: %s", err)
		}
	})
}
