// Package notify delivers operator alerts for book events (settlements,
// duo signals) to external channels such as Telegram and Discord. The
// Bridge feeds it from the signal bus; senders are fan-out targets.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers one alert to a single external channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "discord".
	Name() string
}

// Notifier fans alerts out to every configured sender. An optional
// allow-list of event kinds limits what Notify forwards; an empty list
// forwards everything.
type Notifier struct {
	senders []Sender
	allowed map[string]struct{}
	logger  *slog.Logger
}

func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards the alert to all senders if the event kind passes the
// allow-list. Filtered events are dropped silently.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 {
		if _, ok := n.allowed[event]; !ok {
			n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
			return nil
		}
	}
	return n.fanout(ctx, title, message)
}

// NotifyAll forwards the alert to all senders, bypassing the allow-list.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.fanout(ctx, title, message)
}

// fanout delivers to every sender. One failing channel does not stop the
// others; all failures are joined into the returned error.
func (n *Notifier) fanout(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		err := s.Send(ctx, title, message)
		if err == nil {
			n.logger.DebugContext(ctx, "alert delivered",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
			continue
		}
		n.logger.ErrorContext(ctx, "sender failed",
			slog.String("sender", s.Name()),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: fanout: %w", errors.Join(errs...))
	}
	return nil
}
