package ws

import (
	"encoding/json"
	"log"

	"safechat-service/internal/observability"
)

// envelope is the wire format of every server-to-client event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Dispatcher is the fan-out surface REST handlers call after a successful
// write. Dispatch is fire-and-forget: failures are logged and swallowed, and
// emitting to a user with no live connections is a silent no-op. The return
// value is the number of connections the event was written to, for logging
// and metrics only.
type Dispatcher interface {
	EmitToUser(userID int, event string, payload any) int
	EmitToUsers(userIDs []int, event string, payload any) int
	Broadcast(event string, payload any) int
}

// FanoutDispatcher pushes events to rooms held by a Registry.
type FanoutDispatcher struct {
	registry *Registry
}

// NewDispatcher constructs a FanoutDispatcher over the registry.
func NewDispatcher(registry *Registry) *FanoutDispatcher {
	return &FanoutDispatcher{registry: registry}
}

// EmitToUser sends the event to every live connection in the user's room.
func (d *FanoutDispatcher) EmitToUser(userID int, event string, payload any) int {
	return d.send(d.registry.Room(userID), event, payload)
}

// EmitToUsers emits to each user in turn. No atomicity across the set.
func (d *FanoutDispatcher) EmitToUsers(userIDs []int, event string, payload any) int {
	delivered := 0
	for _, userID := range userIDs {
		delivered += d.EmitToUser(userID, event, payload)
	}
	return delivered
}

// Broadcast sends the event to every registered connection.
func (d *FanoutDispatcher) Broadcast(event string, payload any) int {
	return d.send(d.registry.AllConnections(), event, payload)
}

func (d *FanoutDispatcher) send(conns []Sender, event string, payload any) int {
	if len(conns) == 0 {
		observability.AddDispatched(event, "dropped", 1)
		return 0
	}

	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("dispatch marshal error event=%s: %v", event, err)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(frame); err != nil {
			log.Printf("dispatch write error event=%s: %v", event, err)
			d.registry.Unregister(conn)
			continue
		}
		delivered++
	}
	observability.AddDispatched(event, "delivered", delivered)
	return delivered
}
