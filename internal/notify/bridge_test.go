package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, title+": "+message)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type chanBus struct {
	mu       sync.Mutex
	channels map[string]chan []byte
}

func newChanBus() *chanBus {
	return &chanBus{channels: map[string]chan []byte{}}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch, ok := b.channels[channel]
	b.mu.Unlock()
	if ok {
		ch <- payload
	}
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 8)
	b.mu.Lock()
	b.channels[channel] = ch
	b.mu.Unlock()
	return ch, nil
}

func (b *chanBus) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBridge_NotifiesOnSettlement(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, nil, logger)
	bus := newChanBus()

	bridge := NewBridge(bus, notifier, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	waitFor(t, func() bool { return bus.subscriberCount() == 2 })

	payload := []byte(`{"match_id":"EUW1_7001234","winner":"A","wagers_won":1,"wagers_lost":2,"paid_out":120.5}`)
	if err := bus.Publish(ctx, domain.ChannelSettlements, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sender.messages()) == 1 })
	got := sender.messages()[0]
	if !strings.Contains(got, "EUW1_7001234") || !strings.Contains(got, "side A") {
		t.Errorf("notification = %q", got)
	}
}

func TestBridge_EventFilterDropsSignals(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, []string{EventSettlement}, logger)
	bus := newChanBus()

	bridge := NewBridge(bus, notifier, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	waitFor(t, func() bool { return bus.subscriberCount() == 2 })

	signal := []byte(`{"match_id":"EUW1_1","team":"A","usernames":["a","b"]}`)
	if err := bus.Publish(ctx, domain.ChannelSignals, signal); err != nil {
		t.Fatalf("publish: %v", err)
	}
	settlement := []byte(`{"match_id":"EUW1_1","winner":"B"}`)
	if err := bus.Publish(ctx, domain.ChannelSettlements, settlement); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sender.messages()) == 1 })
	if got := sender.messages()[0]; !strings.Contains(got, "settled") {
		t.Errorf("notification = %q, want settlement only", got)
	}
}

func TestNotifier_EmptyEventListAllowsAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, nil, logger)

	if err := notifier.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.messages()) != 1 {
		t.Errorf("messages = %v, want 1", sender.messages())
	}
}
