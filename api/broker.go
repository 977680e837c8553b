package api

import (
	"sync"

	"github.com/routebird/bgpd/reactor"
)

// EventBroker fans the reactor's single OutputEvent stream out to every
// currently-connected control-channel subscriber.
type EventBroker struct {
	mu   sync.Mutex
	subs map[chan reactor.OutputEvent]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: map[chan reactor.OutputEvent]struct{}{}}
}

func (b *EventBroker) Subscribe() chan reactor.OutputEvent {
	ch := make(chan reactor.OutputEvent, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *EventBroker) Unsubscribe(ch chan reactor.OutputEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Run drains the reactor's event channel and broadcasts each event to
// every subscriber, dropping for any subscriber whose buffer is full
// rather than blocking the reactor's own event production.
func (b *EventBroker) Run(events <-chan reactor.OutputEvent) {
	for ev := range events {
		b.mu.Lock()
		for ch := range b.subs {
			select {
			case ch <- ev:
			default:
			}
		}
		b.mu.Unlock()
	}
}
