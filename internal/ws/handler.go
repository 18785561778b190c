package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"safechat-service/internal/auth"
	"safechat-service/internal/models"
	"safechat-service/internal/observability"
)

// Handler upgrades realtime connections and drives their read loop.
type Handler struct {
	registry *Registry
	tokens   *auth.TokenManager
	tracer   trace.Tracer
}

// NewHandler constructs a websocket Handler.
func NewHandler(registry *Registry, tokens *auth.TokenManager) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		tracer:   otel.Tracer("safechat-service/ws"),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, upgrades the connection and registers
// it against the caller's user room.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConnection(socket)
	conn.Start()
	h.registry.Register(conn, userID)

	observability.IncWSActive()
	observability.IncWSEvent("connect")
	ip := observability.IPFromRequest(c.Request)
	log.Printf("ws connect conn=%s user=%d ip=%s", conn.ID, userID, ip)

	go h.readLoop(conn, socket, userID)
}

func (h *Handler) authenticate(c *gin.Context) (int, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
	} else {
		parts := strings.SplitN(token, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}
	return h.tokens.Validate(token)
}

// readLoop consumes inbound frames until the transport dies, then runs the
// standard unregister path. The only meaningful client frame is "register",
// which re-binds idempotently; any undecodable frame closes the connection.
func (h *Handler) readLoop(conn *Connection, socket *websocket.Conn, userID int) {
	start := time.Now()
	defer func() {
		h.registry.Unregister(conn)
		conn.Shutdown(websocket.CloseNormalClosure, "")
		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
		log.Printf("ws disconnect conn=%s user=%d duration_ms=%d", conn.ID, userID, time.Since(start).Milliseconds())
	}()

	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := socket.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("error")
				log.Printf("ws read error conn=%s user=%d: %v", conn.ID, userID, err)
			}
			return
		}

		var inbound struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &inbound); err != nil {
			observability.IncWSEvent("error")
			log.Printf("ws malformed frame conn=%s user=%d: %v", conn.ID, userID, err)
			return
		}

		if inbound.Event == models.EventRegister {
			// Identity comes from the handshake token; a register frame
			// claiming another user is ignored.
			h.registry.Register(conn, userID)
		}
	}
}
