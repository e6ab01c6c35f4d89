package events

import "context"

// Publisher puts room events on the bus for gateway fanout.
type Publisher interface {
	Publish(ctx context.Context, event RoomEvent) error
	Close() error
}

// NopPublisher drops every event. Used by tests and by client-side setups
// that have no bus.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RoomEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }
