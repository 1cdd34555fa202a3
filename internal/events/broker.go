// Package events is an in-process broker through which controllers announce
// state changes to whatever is rendering them.
package events

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Event types published by the controllers.
const (
	BrowseCategories = "browse.categories"
	BrowseResults    = "browse.results"
	BrowseLoading    = "browse.loading"
	BrowseDetail     = "browse.detail"
	BrowseBanner     = "browse.banner"

	ChatMessage     = "chat.message"
	ChatSending     = "chat.sending"
	ChatSuggestions = "chat.suggestions"

	CollectorState   = "collector.state"
	CollectorResults = "collector.results"
	CollectorReview  = "collector.review"
	CollectorBanner  = "collector.banner"
	CollectorNotice  = "collector.notice"

	LocaleChanged = "locale.changed"
)

// Event is a single state change notification.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// String renders e in the "event: / data:" framing used for logs and the MCP transcript.
func (e Event) String() string {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		payload = []byte("null")
	}
	return fmt.Sprintf("event: %s\ndata: %s\n", e.Type, payload)
}

// Publisher is implemented by anything that accepts events.
type Publisher interface {
	Publish(Event)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Broker fans events out to subscribers.
//
// A single goroutine owns the subscriber set; public methods talk to it over
// channels, so no mutexes are needed.
type Broker struct {
	subscribeCh   chan chan Event
	unsubscribeCh chan chan Event
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan Event),
		unsubscribeCh: make(chan chan Event),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan Event]struct{})
	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			subs[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			for ch := range subs {
				select {
				case ch <- ev:
				default:
					// Slow subscriber; drop rather than stall the loop.
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Broker) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues ev for delivery to all subscribers.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}
