package ws

import (
	"context"
	"log"
	"time"

	"safechat-service/internal/models"
	"safechat-service/internal/observability"
	"safechat-service/internal/repositories"
)

// PresencePublisher persists online/offline transitions and fans out
// presence:update events. Public users are broadcast to every connection;
// private users are only announced to their friends and themselves, with
// visible=false so the UI falls back to "last seen recently".
type PresencePublisher struct {
	users      repositories.UserRepository
	friends    repositories.FriendshipRepository
	dispatcher Dispatcher
}

// NewPresencePublisher constructs a PresencePublisher.
func NewPresencePublisher(users repositories.UserRepository, friends repositories.FriendshipRepository, dispatcher Dispatcher) *PresencePublisher {
	return &PresencePublisher{users: users, friends: friends, dispatcher: dispatcher}
}

var _ PresenceListener = (*PresencePublisher)(nil)

// UserOnline handles a 0→1 connection transition.
func (p *PresencePublisher) UserOnline(userID int) {
	observability.IncPresenceTransition("online")
	p.publish(userID, true)
}

// UserOffline handles a 1→0 connection transition.
func (p *PresencePublisher) UserOffline(userID int) {
	observability.IncPresenceTransition("offline")
	p.publish(userID, false)
}

func (p *PresencePublisher) publish(userID int, isOnline bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	user, err := p.users.SetPresence(ctx, userID, isOnline, now)
	if err != nil {
		// The refcount transition is not rolled back on persistence failure;
		// the broadcast still goes out if the profile can be read.
		log.Printf("presence persist failed user=%d online=%t: %v", userID, isOnline, err)
		user, err = p.users.GetUser(ctx, userID)
		if err != nil {
			log.Printf("presence lookup failed user=%d: %v", userID, err)
			return
		}
		user.IsOnline = isOnline
		user.LastSeen = now
	}

	payload := models.PresencePayload{
		UserID:   user.ID,
		IsOnline: user.IsOnline,
		LastSeen: user.LastSeen,
		Visible:  !user.IsPrivate,
	}

	if !user.IsPrivate {
		p.dispatcher.Broadcast(models.EventPresenceUpdate, payload)
		return
	}

	targets, err := p.friends.FriendIDs(ctx, userID)
	if err != nil {
		log.Printf("presence friend lookup failed user=%d: %v", userID, err)
		targets = nil
	}
	p.dispatcher.EmitToUsers(append(targets, userID), models.EventPresenceUpdate, payload)
}
