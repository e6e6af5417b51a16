package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rescp17/relayFileSharer/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 20
	// maxCodeAttempts bounds the search for an unused room code.
	maxCodeAttempts = 16
)

var ErrNoFreeCode = errors.New("could not allocate a room code")

// Client is one websocket connection to the relay.
type Client struct {
	ID   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes

	room *Room // guarded by Server.mu
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server pairs clients into rooms and forwards relayed messages between the
// two members of a room without looking at their contents.
type Server struct {
	upgrader   websocket.Upgrader
	serializer protocol.MessageSerializer
	newCode    func() (string, error)

	mu      sync.Mutex
	rooms   map[string]*Room
	clients map[string]*Client
}

func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		serializer: protocol.NewJSONSerializer(),
		newCode:    newRoomCode,
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
	}
}

// Handler serves the websocket endpoint at "/" and a health check at
// "/healthz".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleWebSocket)
	return mux
}

type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Rooms: len(s.rooms), Clients: len(s.clients)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Stats
	}{Status: "ok", Stats: s.Stats()}); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "WebSocket upgrade required", http.StatusUpgradeRequired)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade error", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{ID: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()
	slog.Info("Client connected", "client", client.ID, "remote", r.RemoteAddr)

	defer s.disconnect(client)

	s.reply(client, protocol.Message{Type: protocol.Connection, ConnectionID: client.ID})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WebSocket read error", "client", client.ID, "error", err)
			}
			return
		}
		s.handleMessage(client, data)
	}
}

func (s *Server) handleMessage(client *Client, data []byte) {
	msg, err := s.serializer.Unmarshal(data)
	if err != nil {
		slog.Warn("Invalid message", "client", client.ID, "error", err)
		s.replyError(client, "Invalid message")
		return
	}

	switch {
	case msg.Type == protocol.CreateRoom:
		s.createRoom(client)
	case msg.Type == protocol.JoinRoom:
		s.joinRoom(client, msg.RoomID)
	case msg.Type.IsRelayed():
		s.forward(client, msg.Type, data)
	default:
		slog.Warn("Unknown message type", "client", client.ID, "type", msg.Type)
		s.replyError(client, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (s *Server) createRoom(client *Client) {
	s.mu.Lock()
	left, peer := s.leaveLocked(client)
	var code string
	for i := 0; i < maxCodeAttempts; i++ {
		candidate, err := s.newCode()
		if err != nil {
			break
		}
		if _, taken := s.rooms[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		s.mu.Unlock()
		s.notifyLeft(left, peer)
		slog.Error("Failed to create room", "client", client.ID, "error", ErrNoFreeCode)
		s.replyError(client, "Could not create room")
		return
	}
	room := &Room{ID: code, Sender: client}
	s.rooms[code] = room
	client.room = room
	s.mu.Unlock()
	s.notifyLeft(left, peer)

	slog.Info("Room created", "room", code, "client", client.ID)
	s.reply(client, protocol.Message{Type: protocol.RoomCreated, RoomID: code})
}

func (s *Server) joinRoom(client *Client, roomID string) {
	code := strings.ToUpper(strings.TrimSpace(roomID))

	s.mu.Lock()
	left, peer := s.leaveLocked(client)
	room, ok := s.rooms[code]
	var reason string
	switch {
	case !ok:
		reason = "Room not found"
	case room.Receiver != nil:
		reason = "Room is full"
	}
	if reason != "" {
		s.mu.Unlock()
		s.notifyLeft(left, peer)
		s.replyError(client, reason)
		return
	}
	room.Receiver = client
	client.room = room
	sender := room.Sender
	s.mu.Unlock()
	s.notifyLeft(left, peer)

	slog.Info("Room joined", "room", code, "client", client.ID)
	s.reply(client, protocol.Message{Type: protocol.RoomJoined, RoomID: code})
	s.reply(sender, protocol.Message{Type: protocol.PeerJoined, RoomID: code})
}

// forward passes the raw frame to the other member of the sender's room.
func (s *Server) forward(from *Client, typ protocol.MessageType, data []byte) {
	s.mu.Lock()
	var peer *Client
	if from.room != nil {
		peer = from.room.peer(from)
	}
	s.mu.Unlock()

	if peer == nil {
		slog.Debug("No peer to relay to", "client", from.ID, "type", typ)
		return
	}
	if err := peer.write(data); err != nil {
		slog.Warn("Relay write failed", "from", from.ID, "to", peer.ID, "type", typ, "error", err)
	}
}

// disconnect removes the client and dissolves its room, telling the other
// member.
func (s *Server) disconnect(client *Client) {
	s.mu.Lock()
	delete(s.clients, client.ID)
	room, peer := s.leaveLocked(client)
	s.mu.Unlock()

	if err := client.conn.Close(); err != nil {
		slog.Debug("close websocket", "client", client.ID, "error", err)
	}
	slog.Info("Client disconnected", "client", client.ID)
	s.notifyLeft(room, peer)
}

// leaveLocked dissolves the client's room, if any, and returns it with the
// member left behind. A client that creates or joins a room while still in
// one leaves the old room first. s.mu must be held.
func (s *Server) leaveLocked(client *Client) (*Room, *Client) {
	room := client.room
	if room == nil {
		return nil, nil
	}
	peer := room.peer(client)
	delete(s.rooms, room.ID)
	client.room = nil
	if peer != nil {
		peer.room = nil
	}
	return room, peer
}

func (s *Server) notifyLeft(room *Room, peer *Client) {
	if room == nil {
		return
	}
	slog.Info("Room closed", "room", room.ID)
	if peer != nil {
		s.reply(peer, protocol.Message{Type: protocol.PeerDisconnected})
	}
}

func (s *Server) reply(client *Client, msg protocol.Message) {
	data, err := s.serializer.Marshal(&msg)
	if err != nil {
		slog.Error("Failed to encode message", "type", msg.Type, "error", err)
		return
	}
	if err := client.write(data); err != nil {
		slog.Warn("Write failed", "client", client.ID, "type", msg.Type, "error", err)
	}
}

func (s *Server) replyError(client *Client, text string) {
	s.reply(client, protocol.Message{Type: protocol.ServerError, Text: text})
}
