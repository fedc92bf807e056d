package notification

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smsrent/smsrent-api/internal/domain/order"
)

func newTestConnection(userID uuid.UUID, admin bool) *Connection {
	return &Connection{
		UserID: userID,
		Admin:  admin,
		Send:   make(chan []byte, 8),
	}
}

// waitConnections blocks until the hub's Run loop has absorbed the
// registrations, so sends cannot race the bookkeeping.
func waitConnections(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d connections", want)
}

func recvEvent(t *testing.T, conn *Connection) *Event {
	t.Helper()
	select {
	case data := <-conn.Send:
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestHubDeliversToUserConnections(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	userID := uuid.New()
	other := uuid.New()
	conn := newTestConnection(userID, false)
	otherConn := newTestConnection(other, false)
	hub.Register(conn)
	hub.Register(otherConn)
	waitConnections(t, hub, 2)

	orderID := uuid.New()
	hub.SendToUser(userID, &Event{Type: EventOrderCompleted, UserID: userID, OrderID: orderID, OTP: "482913"})

	event := recvEvent(t, conn)
	if event.Type != EventOrderCompleted {
		t.Fatalf("expected %s, got %s", EventOrderCompleted, event.Type)
	}
	if event.OTP != "482913" {
		t.Fatalf("expected OTP in payload, got %q", event.OTP)
	}

	select {
	case <-otherConn.Send:
		t.Fatal("event leaked to another user's connection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastsToAdminsOnly(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	admin := newTestConnection(uuid.New(), true)
	user := newTestConnection(uuid.New(), false)
	hub.Register(admin)
	hub.Register(user)
	waitConnections(t, hub, 2)

	hub.BroadcastToAdmins(&Event{Type: EventDepositClaimed, UserID: uuid.New(), AmountCents: 1000})

	event := recvEvent(t, admin)
	if event.Type != EventDepositClaimed {
		t.Fatalf("expected %s, got %s", EventDepositClaimed, event.Type)
	}

	select {
	case <-user.Send:
		t.Fatal("admin event leaked to a regular user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	conn := newTestConnection(uuid.New(), false)
	hub.Register(conn)
	waitConnections(t, hub, 1)
	hub.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		if ok {
			t.Fatal("expected closed channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}

	if n := hub.ConnectionCount(); n != 0 {
		t.Fatalf("expected 0 connections, got %d", n)
	}
}

// Deliveries must not touch a connection the unregister path is tearing
// down: the connection map and the Send close are guarded by the same lock.
func TestSendDuringConnectionChurn(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	userID := uuid.New()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				hub.SendToUser(userID, &Event{Type: EventOrderCompleted, UserID: userID})
			}
		}
	}()

	for i := 0; i < 200; i++ {
		conn := newTestConnection(userID, false)
		hub.Register(conn)
		hub.Unregister(conn)
	}

	close(done)
	wg.Wait()
	waitConnections(t, hub, 0)
}

func TestPublisherMapsOrderEvents(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	userID := uuid.New()
	conn := newTestConnection(userID, false)
	hub.Register(conn)
	waitConnections(t, hub, 1)

	pub := NewPublisher(hub)
	otp := "1234"
	o := &order.Order{ID: uuid.New(), UserID: userID, CostCents: 17, OTP: &otp}

	pub.OrderCompleted(context.Background(), o)
	event := recvEvent(t, conn)
	if event.Type != EventOrderCompleted || event.OTP != "1234" {
		t.Fatalf("unexpected completed event: %+v", event)
	}

	pub.OrderRefunded(context.Background(), o, "sms timeout")
	event = recvEvent(t, conn)
	if event.Type != EventOrderRefunded {
		t.Fatalf("expected %s, got %s", EventOrderRefunded, event.Type)
	}
	if event.Reason != "sms timeout" || event.AmountCents != 17 {
		t.Fatalf("unexpected refund payload: %+v", event)
	}
}
