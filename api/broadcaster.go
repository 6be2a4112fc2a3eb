// Package api exposes a hart's Inspector over HTTP and WebSocket for
// external tooling (a waveform viewer, a CI dashboard), grounded on the
// teacher's api package: a fan-out Broadcaster plus a net/http-routed
// Server, with gorilla/websocket carrying the live event feed.
package api

import "sync"

// EventType distinguishes the kinds of event the broadcaster fans out.
type EventType string

const (
	EventCsrWrite  EventType = "csr_write"
	EventTrigger   EventType = "trigger_hit"
	EventViolation EventType = "mcm_violation"
	EventRunState  EventType = "run_state"
)

// BroadcastEvent is one event sent to subscribed WebSocket clients.
type BroadcastEvent struct {
	Type EventType              `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Subscription is a client's live filter over the event stream.
type Subscription struct {
	EventTypes map[EventType]bool
	Channel    chan BroadcastEvent
}

// Broadcaster fans events out to every subscribed client, grounded on
// api/broadcaster.go's register/unregister/broadcast channel loop.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription]bool
	broadcast     chan BroadcastEvent
	register      chan *Subscription
	unregister    chan *Subscription
	done          chan struct{}
}

// NewBroadcaster creates and starts a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscriptions: make(map[*Subscription]bool),
		broadcast:     make(chan BroadcastEvent, 256),
		register:      make(chan *Subscription),
		unregister:    make(chan *Subscription),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subscriptions[sub] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if b.subscriptions[sub] {
				delete(b.subscriptions, sub)
				close(sub.Channel)
			}
			b.mu.Unlock()

		case event := <-b.broadcast:
			b.mu.RLock()
			for sub := range b.subscriptions {
				if len(sub.EventTypes) > 0 && !sub.EventTypes[event.Type] {
					continue
				}
				select {
				case sub.Channel <- event:
				default:
					// slow client, drop rather than block the broadcaster
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			b.mu.Lock()
			for sub := range b.subscriptions {
				close(sub.Channel)
			}
			b.subscriptions = make(map[*Subscription]bool)
			b.mu.Unlock()
			return
		}
	}
}

// Subscribe registers a new client filter. eventTypes empty means all types.
func (b *Broadcaster) Subscribe(eventTypes []EventType) *Subscription {
	m := make(map[EventType]bool, len(eventTypes))
	for _, et := range eventTypes {
		m[et] = true
	}
	sub := &Subscription{EventTypes: m, Channel: make(chan BroadcastEvent, 64)}
	b.register <- sub
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) { b.unregister <- sub }

// Broadcast sends an event to all matching subscriptions, dropping it if
// the internal queue is full rather than blocking the caller.
func (b *Broadcaster) Broadcast(event BroadcastEvent) {
	select {
	case b.broadcast <- event:
	default:
	}
}

// BroadcastViolation sends a newly recorded MCM/PPO violation.
func (b *Broadcaster) BroadcastViolation(data map[string]interface{}) {
	b.Broadcast(BroadcastEvent{Type: EventViolation, Data: data})
}

// BroadcastTriggerHit sends a trigger-fired event.
func (b *Broadcaster) BroadcastTriggerHit(data map[string]interface{}) {
	b.Broadcast(BroadcastEvent{Type: EventTrigger, Data: data})
}

// BroadcastRunState sends a run-state transition.
func (b *Broadcaster) BroadcastRunState(data map[string]interface{}) {
	b.Broadcast(BroadcastEvent{Type: EventRunState, Data: data})
}

// Close shuts the broadcaster down and closes every subscription.
func (b *Broadcaster) Close() { close(b.done) }

// SubscriptionCount reports the number of live subscriptions, for tests.
func (b *Broadcaster) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
