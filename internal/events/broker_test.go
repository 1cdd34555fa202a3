package events

import (
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers")
	}
	ch := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	b.Unsubscribe(ch)
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe")
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: CollectorBanner, Data: map[string]string{"message": "search failed"}})

	select {
	case ev := <-ch:
		if ev.Type != CollectorBanner {
			t.Errorf("type = %q", ev.Type)
		}
		if s := ev.String(); !strings.Contains(s, `"message":"search failed"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishOrderPerSubscriber(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: ChatMessage, Data: i})
	}
	for i := 0; i < 5; i++ {
		select {
		case ev := <-ch:
			if ev.Data != i {
				t.Fatalf("event %d data = %v", i, ev.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber not closed")
	}

	// Safe after close.
	b.Close()
	b.Publish(Event{Type: LocaleChanged})
	b.Unsubscribe(ch)
	if b.SubscriberCount() != 0 {
		t.Error("closed broker should report 0 subscribers")
	}
	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}

func TestEventString(t *testing.T) {
	ev := Event{Type: BrowseLoading, Data: true}
	if got := ev.String(); got != "event: browse.loading\ndata: true\n" {
		t.Errorf("String() = %q", got)
	}
	Discard.Publish(ev)
}
