package ws

import (
	"errors"
	"testing"
)

type fakeSender struct {
	frames [][]byte
	fail   bool
	closed bool
}

func (f *fakeSender) Send(frame []byte) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSender) Shutdown(code int, reason string) {
	f.closed = true
}

type recordingListener struct {
	online  []int
	offline []int
}

func (l *recordingListener) UserOnline(userID int)  { l.online = append(l.online, userID) }
func (l *recordingListener) UserOffline(userID int) { l.offline = append(l.offline, userID) }

func TestRegistryFirstConnectionFiresOnlineOnce(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetPresenceListener(listener)

	a, b := &fakeSender{}, &fakeSender{}
	registry.Register(a, 1)
	registry.Register(b, 1)

	if got := registry.Connections(1); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	if len(listener.online) != 1 || listener.online[0] != 1 {
		t.Fatalf("expected exactly one online transition for user 1, got %v", listener.online)
	}
}

func TestRegistryLastDisconnectFiresOfflineOnce(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetPresenceListener(listener)

	a, b := &fakeSender{}, &fakeSender{}
	registry.Register(a, 1)
	registry.Register(b, 1)

	registry.Unregister(a)
	if len(listener.offline) != 0 {
		t.Fatalf("user still has a live connection, got offline %v", listener.offline)
	}

	registry.Unregister(b)
	if len(listener.offline) != 1 || listener.offline[0] != 1 {
		t.Fatalf("expected exactly one offline transition for user 1, got %v", listener.offline)
	}
	if got := registry.Connections(1); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
}

func TestRegistryRegisterSameBindingIsNoop(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetPresenceListener(listener)

	conn := &fakeSender{}
	registry.Register(conn, 1)
	registry.Register(conn, 1)
	registry.Register(conn, 1)

	if got := registry.Connections(1); got != 1 {
		t.Fatalf("expected refcount 1, got %d", got)
	}
	if len(listener.online) != 1 {
		t.Fatalf("expected one online transition, got %v", listener.online)
	}
}

func TestRegistryRebindMovesConnectionBetweenRooms(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetPresenceListener(listener)

	conn := &fakeSender{}
	registry.Register(conn, 1)
	registry.Register(conn, 2)

	if got := registry.Connections(1); got != 0 {
		t.Fatalf("expected old room empty, got %d", got)
	}
	if got := registry.Connections(2); got != 1 {
		t.Fatalf("expected new room to hold the connection, got %d", got)
	}
	if len(listener.offline) != 1 || listener.offline[0] != 1 {
		t.Fatalf("expected offline for the old user, got %v", listener.offline)
	}
	if len(listener.online) != 2 || listener.online[1] != 2 {
		t.Fatalf("expected online for both users in order, got %v", listener.online)
	}
}

func TestRegistryUnregisterUnknownConnectionIsNoop(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetPresenceListener(listener)

	conn := &fakeSender{}
	registry.Unregister(conn)
	registry.Unregister(conn)

	if len(listener.offline) != 0 {
		t.Fatalf("expected no transitions, got %v", listener.offline)
	}
}

func TestRegistryRoomSnapshots(t *testing.T) {
	registry := NewRegistry()

	a, b, c := &fakeSender{}, &fakeSender{}, &fakeSender{}
	registry.Register(a, 1)
	registry.Register(b, 1)
	registry.Register(c, 2)

	if got := len(registry.Room(1)); got != 2 {
		t.Fatalf("expected 2 connections in room 1, got %d", got)
	}
	if got := len(registry.Room(99)); got != 0 {
		t.Fatalf("expected empty room for unknown user, got %d", got)
	}
	if got := len(registry.AllConnections()); got != 3 {
		t.Fatalf("expected 3 connections total, got %d", got)
	}
}
