package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
	"github.com/devforge/workbench/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds to loopback; the UI shell is the only client.
		return true
	},
}

// Message is a client -> server control frame.
type Message struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// Handler bridges the event bus to WebSocket clients. A client
// subscribes to the topics it cares about (session handles, "auth",
// "repo"); events for each topic are forwarded in emission order.
type Handler struct {
	bus     *events.Bus
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a WebSocket handler over the bus.
func NewHandler(bus *events.Bus, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		bus:     bus,
		log:     log.Named("ws"),
		metrics: metrics,
	}
}

// conn is one client connection. Writes are serialized through the
// outbound channel; topics tracks this connection's bus subscriptions
// so they can be released on close.
type conn struct {
	ws       *websocket.Conn
	outbound chan interface{}

	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// enqueue offers v to the writer without blocking. Safe against
// teardown: bus listeners may still fire while their queues drain.
func (c *conn) enqueue(v interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.outbound <- v:
		return true
	default:
		return false
	}
}

// HandleConnection upgrades the request and serves the subscription
// protocol until the client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	streamID := id.NewStreamID()
	client := &conn{
		ws:       ws,
		outbound: make(chan interface{}, 256),
		topics:   make(map[string]struct{}),
	}

	h.metrics.WSConnections.Inc()
	h.log.Info("stream connected", zap.String("stream_id", streamID.String()))

	go h.writeLoop(client)

	client.enqueue(gin.H{
		"type":      "system",
		"stream_id": streamID.String(),
		"message":   "connected",
	})

	h.readLoop(client, streamID)

	h.teardown(client)
	h.metrics.WSConnections.Dec()
	h.log.Info("stream disconnected", zap.String("stream_id", streamID.String()))
}

func (h *Handler) readLoop(client *conn, streamID id.StreamID) {
	for {
		var msg Message
		if err := client.ws.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			h.subscribe(client, msg.Topic)
		case "unsubscribe":
			h.unsubscribe(client, msg.Topic)
		case "ping":
			client.enqueue(gin.H{"type": "pong", "timestamp": time.Now().Unix()})
		default:
			client.enqueue(gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *Handler) subscribe(client *conn, topic string) {
	if topic == "" {
		client.enqueue(gin.H{"type": "error", "message": "topic is required"})
		return
	}

	err := h.bus.Subscribe(topic, func(ev events.Event) {
		h.metrics.WSEvents.WithLabelValues(ev.Type).Inc()
		if !client.enqueue(ev) {
			h.log.Debug("dropping event for slow stream", zap.String("topic", ev.Topic))
		}
	})
	if err != nil {
		client.enqueue(gin.H{"type": "error", "topic": topic, "message": err.Error()})
		return
	}

	client.mu.Lock()
	client.topics[topic] = struct{}{}
	client.mu.Unlock()

	client.enqueue(gin.H{"type": "subscribed", "topic": topic})
}

func (h *Handler) unsubscribe(client *conn, topic string) {
	client.mu.Lock()
	_, mine := client.topics[topic]
	delete(client.topics, topic)
	client.mu.Unlock()

	if mine {
		h.bus.Unsubscribe(topic)
	}
	client.enqueue(gin.H{"type": "unsubscribed", "topic": topic})
}

func (h *Handler) writeLoop(client *conn) {
	for v := range client.outbound {
		if err := client.ws.WriteJSON(v); err != nil {
			return
		}
	}
}

// teardown releases the connection's subscriptions, stops the writer,
// and closes the socket.
func (h *Handler) teardown(client *conn) {
	client.mu.Lock()
	topics := make([]string, 0, len(client.topics))
	for topic := range client.topics {
		topics = append(topics, topic)
	}
	client.topics = make(map[string]struct{})
	client.mu.Unlock()

	for _, topic := range topics {
		h.bus.Unsubscribe(topic)
	}

	client.mu.Lock()
	client.closed = true
	close(client.outbound)
	client.mu.Unlock()

	client.ws.Close()
}
