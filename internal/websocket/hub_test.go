package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	return hub
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send():
		t.Fatalf("unexpected message: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := startHub(t)

	a := NewClient(hub)
	b := NewClient(hub)
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast([]byte("hello"))

	if got := string(recv(t, a)); got != "hello" {
		t.Errorf("client a got %q", got)
	}
	if got := string(recv(t, b)); got != "hello" {
		t.Errorf("client b got %q", got)
	}
}

func TestHub_CalendarScopedDelivery(t *testing.T) {
	hub := startHub(t)

	subscribed := NewClient(hub)
	subscribed.Subscribe("cal-1")
	elsewhere := NewClient(hub)
	elsewhere.Subscribe("cal-2")
	unfiltered := NewClient(hub)

	hub.Register(subscribed)
	hub.Register(elsewhere)
	hub.Register(unfiltered)

	hub.BroadcastToCalendar("cal-1", []byte("update"))

	if got := string(recv(t, subscribed)); got != "update" {
		t.Errorf("subscribed client got %q", got)
	}
	// Clients with no subscriptions receive everything.
	if got := string(recv(t, unfiltered)); got != "update" {
		t.Errorf("unfiltered client got %q", got)
	}
	expectNothing(t, elsewhere)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := startHub(t)

	c := NewClient(hub)
	c.Subscribe("cal-1")
	c.Subscribe("cal-2")
	hub.Register(c)

	c.Unsubscribe("cal-1")
	hub.BroadcastToCalendar("cal-1", []byte("update"))
	expectNothing(t, c)

	hub.BroadcastToCalendar("cal-2", []byte("still here"))
	if got := string(recv(t, c)); got != "still here" {
		t.Errorf("got %q after partial unsubscribe", got)
	}
}

func TestEventBroadcaster_SyncCompletedEnvelope(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	c.Subscribe("cal-1")
	hub.Register(c)

	NewEventBroadcaster(hub).BroadcastChange(TypeShiftChanged, ActionUpdated, "cal-1", map[string]string{"id": "shift-1"})

	var msg Message
	if err := json.Unmarshal(recv(t, c), &msg); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if msg.Type != TypeShiftChanged || msg.Action != ActionUpdated || msg.CalendarID != "cal-1" {
		t.Errorf("envelope = %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("envelope missing timestamp")
	}
}
