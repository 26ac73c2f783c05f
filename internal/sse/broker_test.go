package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(WithListThrottle(100*time.Millisecond), WithKeepAlive(0))
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(WithListThrottle(100*time.Millisecond), WithKeepAlive(0))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventSessionSaved, Data: map[string]int64{"id": 7}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\n") {
			t.Errorf("missing sequence id in %q", s)
		}
		if !strings.Contains(s, "event: session.saved") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":7`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSessionEvent_ListThrottle(t *testing.T) {
	b := NewBroker(WithListThrottle(500*time.Millisecond), WithKeepAlive(0))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSessionEvent(KindSaved, 1)
	b.PublishSessionEvent(KindDeleted, 2)
	b.PublishSessionEvent("renamed", 3)

	time.Sleep(50 * time.Millisecond)
	listCount := 0
	sessionCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "sessions.updated") {
				listCount++
			} else {
				sessionCount++
			}
		default:
			break loop
		}
	}

	if sessionCount != 2 {
		t.Errorf("session events = %d, want 2", sessionCount)
	}
	if listCount != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", listCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(WithListThrottle(100*time.Millisecond), WithKeepAlive(0))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "session.deleted", Data: map[string]int64{"id": 3}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: session.deleted") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(WithListThrottle(time.Second), WithKeepAlive(0))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+6; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d", n)
	}
	if n := len(ch); n != subscriberBuffer {
		t.Errorf("buffered = %d, want a full buffer with the rest dropped", n)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(WithListThrottle(100*time.Millisecond), WithKeepAlive(0))
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Close()
	b.Publish(Event{Type: "session.saved", Data: map[string]int64{"id": 1}})
	b.PublishSessionEvent(KindSaved, 1)
}

func TestSequenceIDsIncrease(t *testing.T) {
	b := NewBroker(WithListThrottle(time.Hour), WithKeepAlive(0))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSessionEvent(KindSaved, 4)
	b.PublishSessionEvent(KindSaved, 5)

	want := []string{
		"id: 1\nevent: session.saved\ndata: {\"id\":4}\n\n",
		"id: 2\nevent: sessions.updated\ndata: {}\n\n",
		"id: 3\nevent: session.saved\ndata: {\"id\":5}\n\n",
	}
	for i, w := range want {
		select {
		case got := <-ch:
			if string(got) != w {
				t.Errorf("frame %d = %q, want %q", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for frame %d", i)
		}
	}
}

func TestKeepAliveOnIdleStream(t *testing.T) {
	b := NewBroker(WithKeepAlive(20 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if n := strings.Count(w.Body.String(), ": keepalive\n\n"); n < 2 {
		t.Errorf("keepalive frames = %d in %q", n, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	b := NewBroker()
	b.Close()
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Fatal("subscription on a closed broker should come back closed")
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d", n)
	}
}
