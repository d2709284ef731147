package reveal

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/secretsanta/giftdraw/internal/notify"
)

// Saver persists reveals.
type Saver interface {
	Save(ctx context.Context, r *Reveal) error
}

// Broadcaster publishes encoded reveals to live watchers.
type Broadcaster interface {
	PublishReveal(token string, data []byte) error
}

// Publisher makes assignments available on the reveal channel. It implements
// notify.Revealer.
type Publisher struct {
	store Saver
	bus   Broadcaster
	now   func() time.Time
}

// NewPublisher creates a Publisher. Either store or bus may be nil to skip
// that half of the channel.
func NewPublisher(store Saver, bus Broadcaster) *Publisher {
	return &Publisher{store: store, bus: bus, now: time.Now}
}

// FromNotification builds the reveal of the giver in n.
func FromNotification(n notify.Notification, at time.Time) *Reveal {
	return &Reveal{
		Token:        n.RevealToken,
		DrawID:       n.DrawID,
		ReceiverName: n.ReceiverName,
		Budget:       n.Event.Budget,
		ExchangeDate: n.Event.ExchangeDate,
		Message:      n.Event.Message,
		RevealedAt:   at.Unix(),
	}
}

// Reveal stores the giver's assignment and publishes it to anyone watching.
// The store is written first so a watcher that subscribes between the two
// steps still finds it on replay.
func (p *Publisher) Reveal(ctx context.Context, n notify.Notification) error {
	if n.RevealToken == "" {
		return fmt.Errorf("reveal: giver %s has no reveal token", n.GiverID)
	}
	r := FromNotification(n, p.now())

	if p.store != nil {
		if err := p.store.Save(ctx, r); err != nil {
			return err
		}
	}

	if p.bus != nil {
		data, err := r.Encode()
		if err != nil {
			return fmt.Errorf("reveal: encode: %w", err)
		}
		if err := p.bus.PublishReveal(r.Token, data); err != nil {
			return fmt.Errorf("reveal: publish giver %s: %w", n.GiverID, err)
		}
	}

	log.Printf("[reveal] draw=%s giver=%s published", r.DrawID, n.GiverID)
	return nil
}
