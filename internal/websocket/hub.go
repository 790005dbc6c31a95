package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/adapters/recognition"
	"github.com/elaralearn/voicelab/server/domain/entities"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the web client origin once it is fixed
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Controller is the slice of the session controller the hub drives in
// response to client commands.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Interrupt(ctx context.Context)
	Pause() error
	Resume() error
	StartListening(ctx context.Context) error
}

// Hub maintains the set of active clients. It fans session events out
// to every client, routes inbound client commands to the controller,
// and bridges audio both ways: binary client frames feed the
// recognizer, synthesized audio streams back as binary frames.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	controller Controller
	logger     *zap.Logger

	audioMu sync.Mutex
	audio   *recognition.FrameBuffer

	lastDisconnect time.Time
}

// NewHub creates a new WebSocket hub. The controller is attached
// afterwards with SetController since the controller needs the hub as
// its event sink.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetController attaches the session controller. Must be called
// before the hub serves connections.
func (h *Hub) SetController(controller Controller) {
	h.controller = controller
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			if len(h.clients) == 0 {
				h.lastDisconnect = time.Now()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LastDisconnect returns when the last client left, zero if a client
// is still connected or none ever connected.
func (h *Hub) LastDisconnect() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) > 0 {
		return time.Time{}
	}
	return h.lastDisconnect
}

// OpenAudioSource opens a fresh audio source for one recognition
// pass. Binary frames from clients route to the newest source; any
// previous source is drained shut.
func (h *Hub) OpenAudioSource() (recognition.AudioSource, error) {
	h.audioMu.Lock()
	defer h.audioMu.Unlock()
	if h.audio != nil {
		h.audio.Close()
	}
	h.audio = recognition.NewFrameBuffer(64)
	return h.audio, nil
}

func (h *Hub) routeAudio(frame []byte) {
	h.audioMu.Lock()
	audio := h.audio
	h.audioMu.Unlock()
	if audio != nil {
		audio.Write(frame)
	}
}

// PlayChunk broadcasts one chunk of synthesized audio to every
// client. Implements the synthesizer's playback sink.
func (h *Hub) PlayChunk(chunk []byte) error {
	h.broadcast(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
	return nil
}

// SessionStatus implements the controller's event sink.
func (h *Hub) SessionStatus(state entities.SessionState, status string) {
	h.broadcastJSON(NewSessionStatusMessage(state, status))
}

// MessageAppended implements the controller's event sink.
func (h *Hub) MessageAppended(msg entities.Message) {
	h.broadcastJSON(NewConversationMessage(msg))
}

// SpeakingStarted implements the controller's event sink.
func (h *Hub) SpeakingStarted() {
	h.broadcastJSON(NewSpeakingStartMessage())
}

// SpeakingEnded implements the controller's event sink.
func (h *Hub) SpeakingEnded(interrupted bool) {
	h.broadcastJSON(NewSpeakingEndMessage(interrupted))
}

func (h *Hub) broadcastJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// broadcast must never block: sink callbacks fire on the controller's
// hot path. Slow clients lose events instead.
func (h *Hub) broadcast(data WriteData) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping event for slow client", zap.String("clientID", client.id))
		}
	}
}

type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan WriteData
	id     string
	logger *zap.Logger
}

// HandleWebSocketWithAuth serves one pre-authenticated connection.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     uuid.New().String(),
		logger: logger,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleCommand(message)
		case websocket.BinaryMessage:
			c.hub.routeAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleCommand dispatches one client control message to the session
// controller.
func (c *Client) handleCommand(message []byte) {
	command, err := ParseCommand(message)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.reply(NewErrorMessage("invalid_command", err.Error()))
		return
	}

	controller := c.hub.controller
	if controller == nil {
		c.reply(NewErrorMessage("not_ready", "session controller is not attached"))
		return
	}

	c.logger.Info("Client command", zap.String("command", command), zap.String("clientID", c.id))

	ctx := context.Background()
	switch command {
	case CommandStartSession:
		err = controller.Start(ctx)
	case CommandStopSession:
		err = controller.Stop()
	case CommandInterrupt:
		controller.Interrupt(ctx)
	case CommandPause:
		err = controller.Pause()
	case CommandResume:
		err = controller.Resume()
	case CommandStartListening:
		err = controller.StartListening(ctx)
	}
	if err != nil {
		c.reply(NewErrorMessage("command_failed", err.Error()))
	}
}

func (c *Client) reply(msg *ErrorMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
	}
}
