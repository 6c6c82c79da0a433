package domain

import "context"

// Event channel names published on the signal bus.
const (
	ChannelQuotes      = "quotes"
	ChannelWagers      = "wagers"
	ChannelSettlements = "settlements"
	ChannelSignals     = "signals"
)

// SignalBus is a lightweight pub/sub fabric for domain events. Publish is
// fire-and-forget pub/sub; StreamAppend additionally records the event on a
// capped durable stream for later inspection.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
