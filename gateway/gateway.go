// Package gateway exposes the room registry over websockets. It keeps the
// connection-to-room bindings, turns inbound commands into registry calls,
// fans room events out to the bound connections and broadcasts snapshots of
// every running room on a fixed interval.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/registry"
	"github.com/brensch/snekarena/room"
)

const DefaultBroadcastInterval = 50 * time.Millisecond

type Options struct {
	Logger            *slog.Logger
	BroadcastInterval time.Duration
}

type Gateway struct {
	reg      *registry.Registry
	sessions *SessionTable
	log      *slog.Logger
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// New builds a gateway and subscribes it to the events of every room in reg.
func New(reg *registry.Registry, opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = DefaultBroadcastInterval
	}
	g := &Gateway{
		reg:      reg,
		sessions: NewSessionTable(),
		log:      opts.Logger,
		interval: opts.BroadcastInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
	reg.Subscribe(g)
	return g
}

func (g *Gateway) Sessions() *SessionTable { return g.sessions }

// ServeWS upgrades the request and starts the connection's pumps. The codec
// is chosen with ?codec=msgpack; JSON is the default.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn, CodecFor(r.URL.Query().Get("codec")), g)
	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()
	g.log.Info("client connected", "conn", c.id, "codec", c.codec.Name(), "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// Run broadcasts snapshots of every playing room until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.broadcastSnapshots()
		}
	}
}

// Close disconnects every client.
func (g *Gateway) Close() {
	g.mu.RLock()
	clients := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

func (g *Gateway) broadcastSnapshots() {
	for _, rm := range g.reg.Rooms() {
		if rm.Phase() != game.PhasePlaying {
			continue
		}
		g.pushSnapshot(rm.ID())
	}
}

func (g *Gateway) pushSnapshot(roomID string) {
	rm, ok := g.reg.Room(roomID)
	if !ok {
		return
	}
	g.broadcast(roomID, "", MsgSnapshot, rm.Snapshot())
}

// broadcast sends a message to every connection bound to roomID except skip.
// Frames are encoded once per codec.
func (g *Gateway) broadcast(roomID, skip, typ string, data any) {
	members := g.sessions.Members(roomID)
	if len(members) == 0 {
		return
	}
	frames := make(map[string][]byte, 2)
	for _, id := range members {
		if id == skip {
			continue
		}
		c, ok := g.client(id)
		if !ok {
			continue
		}
		frame, ok := frames[c.codec.Name()]
		if !ok {
			var err error
			frame, err = c.codec.Encode(Envelope{Type: typ, Data: data})
			if err != nil {
				g.log.Error("encode broadcast", "room", roomID, "type", typ, "error", err)
				return
			}
			frames[c.codec.Name()] = frame
		}
		c.enqueue(frame)
	}
}

// Publish implements room.Notifier.
func (g *Gateway) Publish(roomID string, ev room.Event) {
	switch ev.Type {
	case room.EventStarted:
		g.broadcast(roomID, "", MsgStarted, nil)
	case room.EventEnded:
		g.broadcast(roomID, "", MsgEnded, EndedMessage{Winner: ev.Winner})
	case room.EventPlayerJoined:
		g.broadcast(roomID, ev.ActorID, MsgPlayerJoined, PlayerJoinedMessage{Name: ev.Name})
	case room.EventPlayerLeft:
		g.broadcast(roomID, ev.ActorID, MsgPlayerLeft, PlayerLeftMessage{ID: ev.ActorID})
	}
}

func (g *Gateway) client(id string) (*client, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.clients[id]
	return c, ok
}

func (g *Gateway) disconnect(c *client) {
	g.leaveCurrent(c)
	g.mu.Lock()
	delete(g.clients, c.id)
	g.mu.Unlock()
	c.close()
	g.log.Info("client disconnected", "conn", c.id)
}

func (g *Gateway) handle(c *client, typ string, raw []byte) {
	switch typ {
	case MsgJoinQuickMatch:
		var req JoinQuickMatchRequest
		if !g.decode(c, typ, raw, &req) {
			return
		}
		g.leaveCurrent(c)
		rm, _, err := g.reg.JoinQuickMatch(c.id, req.PlayerName)
		g.finishJoin(c, rm, err)

	case MsgCreateRoom:
		var req CreateRoomRequest
		if !g.decode(c, typ, raw, &req) {
			return
		}
		g.leaveCurrent(c)
		rm, _, err := g.reg.CreateRoom(c.id, req.PlayerName, req.RoomName)
		if err == nil {
			c.sendMessage(MsgRoomCreated, RoomCreatedMessage{Code: rm.Config().Code, RoomInfo: rm.Info()})
		}
		g.finishJoin(c, rm, err)

	case MsgJoinRoom:
		var req JoinRoomRequest
		if !g.decode(c, typ, raw, &req) {
			return
		}
		g.leaveCurrent(c)
		rm, _, err := g.reg.JoinByCode(c.id, req.PlayerName, req.RoomCode)
		g.finishJoin(c, rm, err)

	case MsgListRooms:
		rooms := g.reg.ListPublicRooms()
		if rooms == nil {
			rooms = []room.Info{}
		}
		c.sendMessage(MsgRoomsList, RoomsListMessage{Rooms: rooms})

	case MsgUpdateDirection:
		var req DirectionRequest
		if !g.decode(c, typ, raw, &req) {
			return
		}
		roomID, ok := g.sessions.Room(c.id)
		if !ok {
			return
		}
		if err := g.reg.UpdateDirection(roomID, c.id, game.Position{X: req.X, Y: req.Y}); err != nil {
			g.log.Debug("direction rejected", "conn", c.id, "room", roomID, "error", err)
		}

	case MsgAddBot:
		roomID, ok := g.sessions.Room(c.id)
		if !ok {
			return
		}
		if _, err := g.reg.AddBot(roomID); err != nil {
			g.log.Info("add bot refused", "conn", c.id, "room", roomID, "error", err)
			return
		}
		g.pushSnapshot(roomID)

	case MsgLeaveRoom:
		g.leaveCurrent(c)

	default:
		g.log.Debug("unknown message type", "conn", c.id, "type", typ)
	}
}

func (g *Gateway) decode(c *client, typ string, raw []byte, v any) bool {
	if err := c.codec.DecodeData(raw, v); err != nil {
		g.log.Debug("bad payload", "conn", c.id, "type", typ, "error", err)
		return false
	}
	return true
}

func (g *Gateway) finishJoin(c *client, rm *room.Room, err error) {
	if err != nil {
		g.log.Info("join refused", "conn", c.id, "error", err)
		c.sendMessage(MsgJoinError, JoinErrorMessage{Reason: joinErrorReason(err)})
		return
	}
	g.sessions.Bind(c.id, rm.ID())
	snap := rm.Snapshot()
	c.sendMessage(MsgJoined, JoinedMessage{
		PlayerID: c.id,
		Snapshot: snap,
		RoomInfo: rm.Info(),
	})
	// The room announces a start from inside Join, before the connection is
	// bound, so a joiner landing in a live match is told here instead.
	if snap.Phase == game.PhasePlaying {
		c.sendMessage(MsgStarted, nil)
	}
}

// leaveCurrent removes the connection's actor from its bound room and lets
// the remaining members see the new state straight away.
func (g *Gateway) leaveCurrent(c *client) {
	roomID, ok := g.sessions.Unbind(c.id)
	if !ok {
		return
	}
	if _, err := g.reg.Leave(roomID, c.id); err != nil {
		g.log.Debug("leave", "conn", c.id, "room", roomID, "error", err)
		return
	}
	g.pushSnapshot(roomID)
}

func joinErrorReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		return "Room not found. Check the code."
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full."
	case errors.Is(err, room.ErrGameInProgress):
		return "Game already in progress."
	case errors.Is(err, registry.ErrCodeExhausted):
		return "Could not create a room right now. Try again."
	default:
		return "Could not join the room."
	}
}
