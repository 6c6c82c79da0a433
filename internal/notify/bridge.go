package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/breakpt/riftbet/internal/domain"
)

// Event type names used for operator notification filtering.
const (
	EventSettlement = "settlement"
	EventSignal     = "signal"
)

// Bridge subscribes to the signal bus and turns settlement and duo-grouping
// events into operator notifications.
type Bridge struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewBridge creates a Bridge over the given bus and notifier.
func NewBridge(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Bridge {
	return &Bridge{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_bridge")),
	}
}

// settlementEvent mirrors the payload published on the settlements channel.
type settlementEvent struct {
	MatchID    string  `json:"match_id"`
	Winner     string  `json:"winner"`
	WagersWon  int     `json:"wagers_won"`
	WagersLost int     `json:"wagers_lost"`
	PaidOut    float64 `json:"paid_out"`
}

// duoSignal mirrors the payload published on the signals channel.
type duoSignal struct {
	MatchID   string   `json:"match_id"`
	Team      string   `json:"team"`
	Usernames []string `json:"usernames"`
}

// Run consumes bus events until the context is cancelled. Delivery failures
// are logged by the notifier; the bridge never stops on them.
func (b *Bridge) Run(ctx context.Context) error {
	settlements, err := b.bus.Subscribe(ctx, domain.ChannelSettlements)
	if err != nil {
		return fmt.Errorf("notify: subscribe settlements: %w", err)
	}
	signals, err := b.bus.Subscribe(ctx, domain.ChannelSignals)
	if err != nil {
		return fmt.Errorf("notify: subscribe signals: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-settlements:
			if !ok {
				return fmt.Errorf("notify: settlements subscription closed")
			}
			b.onSettlement(ctx, data)
		case data, ok := <-signals:
			if !ok {
				return fmt.Errorf("notify: signals subscription closed")
			}
			b.onSignal(ctx, data)
		}
	}
}

func (b *Bridge) onSettlement(ctx context.Context, data []byte) {
	var ev settlementEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		b.logger.WarnContext(ctx, "bad settlement payload", slog.String("error", err.Error()))
		return
	}

	title := fmt.Sprintf("Match %s settled", ev.MatchID)
	message := fmt.Sprintf("Winner: side %s. Wagers won %d, lost %d. Paid out %.2f coins.",
		ev.Winner, ev.WagersWon, ev.WagersLost, ev.PaidOut)
	b.notifier.Notify(ctx, EventSettlement, title, message)
}

func (b *Bridge) onSignal(ctx context.Context, data []byte) {
	var ev duoSignal
	if err := json.Unmarshal(data, &ev); err != nil {
		b.logger.WarnContext(ctx, "bad signal payload", slog.String("error", err.Error()))
		return
	}

	title := fmt.Sprintf("Duo group in match %s", ev.MatchID)
	message := fmt.Sprintf("Side %s: %d tracked players share a team.", ev.Team, len(ev.Usernames))
	b.notifier.Notify(ctx, EventSignal, title, message)
}
