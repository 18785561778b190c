package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"safechat-service/internal/models"
)

const (
	dialTimeout = 10 * time.Second
	pongWait    = 60 * time.Second
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client subscribes to the service's websocket endpoint and feeds every
// pushed event into a Store.
type Client struct {
	conn  *websocket.Conn
	store *Store
}

// Dial connects to wsURL authenticating with token, announces the session by
// sending a register frame and returns a client bound to store.
func Dial(ctx context.Context, wsURL string, token string, store *Store) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	register := envelope{Event: models.EventRegister}
	if register.Data, err = json.Marshal(store.selfID); err == nil {
		err = conn.WriteJSON(register)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("register: %w", err)
	}

	return &Client{conn: conn, store: store}, nil
}

// Run reads events until the connection drops or ctx is cancelled. It always
// closes the connection before returning.
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.apply(raw)
	}
}

func (c *Client) apply(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("client: dropping malformed frame: %v", err)
		return
	}

	var err error
	switch env.Event {
	case models.EventMessageNew:
		var p models.MessageNewPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			c.store.ApplyMessageNew(p)
		}
	case models.EventMessageRead:
		var p models.MessageReadPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			c.store.ApplyMessageRead(p)
		}
	case models.EventChatNew:
		var p models.ChatNewPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			c.store.ApplyChatNew(p)
		}
	case models.EventNotificationNew:
		var p models.NotificationNewPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			c.store.ApplyNotification(p)
		}
	case models.EventPresenceUpdate:
		var p models.PresencePayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			c.store.ApplyPresence(p)
		}
	default:
		// Unknown events are ignored so older clients survive new
		// server-side event types.
		return
	}
	if err != nil {
		log.Printf("client: dropping %s event with bad payload: %v", env.Event, err)
	}
}
