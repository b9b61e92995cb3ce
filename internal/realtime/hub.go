// Package realtime relays demo channel messages from Redis pub/sub to the
// browser over websockets.
package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"agent-demo-webhooks/internal/common/database"
	"agent-demo-webhooks/internal/common/logger"
	"agent-demo-webhooks/internal/common/metrics"
)

// Route is the websocket endpoint pattern.
const Route = "GET /ws/demos/{demoID}"

const writeWait = 10 * time.Second

type Config struct {
	AllowedOrigins []string
	ChannelPrefix  string
}

type connectedMessage struct {
	Type   string `json:"type"`
	DemoID string `json:"demoId"`
}

type Hub struct {
	redis          *database.RedisClient
	prefix         string
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
	logger         logger.Logger
}

func NewHub(cfg Config, client *database.RedisClient, log logger.Logger) *Hub {
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "demo-"
	}

	h := &Hub{
		redis:          client,
		prefix:         prefix,
		allowedOrigins: origins,
		logger:         log.WithFields(map[string]interface{}{"component": "realtime"}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// Register mounts the hub on mux.
func (h *Hub) Register(mux *http.ServeMux) {
	mux.Handle(Route, h)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.allowedOrigins[origin]
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	demoID := r.PathValue("demoID")
	if demoID == "" {
		http.Error(w, "missing demo id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", map[string]interface{}{"demoId": demoID, "error": err})
		return
	}
	defer conn.Close()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	channel := h.prefix + demoID
	pubsub := h.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Error("Subscribe failed", map[string]interface{}{"channel": channel, "error": err})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(connectedMessage{Type: "connected", DemoID: demoID}); err != nil {
		return
	}

	go h.forward(ctx, cancel, conn, pubsub.Channel(), channel)

	// Client messages are ignored; reading drives close and ping handling.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket closed unexpectedly", map[string]interface{}{"demoId": demoID, "error": err})
			}
			return
		}
	}
}

// forward is the only writer once the connected message is sent.
func (h *Hub) forward(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, ch <-chan *redis.Message, channel string) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Debug("WebSocket write failed", map[string]interface{}{"channel": channel, "error": err})
				_ = conn.Close()
				return
			}
		}
	}
}
