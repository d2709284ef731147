package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/secretsanta/giftdraw/internal/draw"
	"github.com/secretsanta/giftdraw/internal/metrics"
)

// ErrDelivery matches any *DeliveryError.
var ErrDelivery = errors.New("notify: delivery failed")

// Sender delivers a single notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Revealer makes an assignment available on the live reveal channel.
type Revealer interface {
	Reveal(ctx context.Context, n Notification) error
}

// Discard is a Sender that accepts every notification without delivering it,
// for deployments where givers learn their assignment on the reveal channel
// only.
type Discard struct{}

// Send implements Sender.
func (Discard) Send(context.Context, Notification) error { return nil }

// Failure records one notification that could not be delivered.
type Failure struct {
	GiverID   string
	GiverName string
	Err       error
}

// DeliveryError reports that a draw succeeded but some givers were not
// notified. The assignment itself is valid.
type DeliveryError struct {
	DrawID   string
	Total    int
	Failures []Failure
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify: %d of %d notifications failed for draw %s (%s): %v",
		len(e.Failures), e.Total, e.DrawID, strings.Join(e.FailedGivers(), ", "), e.Failures[0].Err)
}

// Is lets errors.Is(err, ErrDelivery) match.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

// FailedGivers returns the names of givers that were not notified.
func (e *DeliveryError) FailedGivers() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.GiverName
	}
	return names
}

// Report summarizes one Notify call.
type Report struct {
	Sent     int
	Revealed int
}

// Dispatcher sends one notification per giver through a Sender and, when
// configured, publishes each assignment to a Revealer.
type Dispatcher struct {
	sender   Sender
	channel  string
	revealer Revealer
	timeout  time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRevealer publishes every assignment to r in addition to sending it.
func WithRevealer(r Revealer) DispatcherOption {
	return func(d *Dispatcher) { d.revealer = r }
}

// WithSendTimeout bounds each individual Send call.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher creates a Dispatcher. channel labels the delivery metrics
// ("smtp", "nats", "none").
func NewDispatcher(sender Sender, channel string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		channel: channel,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify delivers every assignment of a draw. Givers are processed in order
// and a failed delivery does not stop the remaining ones. It returns a
// *DeliveryError listing every giver that was not notified. Reveal failures
// are logged only.
func (d *Dispatcher) Notify(ctx context.Context, drawID string, assignments []draw.Assignment, event Event) (*Report, error) {
	report := &Report{}
	var failures []Failure

	for _, a := range assignments {
		n := NewNotification(drawID, a, event)

		if err := d.send(ctx, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues(d.channel, "failed").Inc()
			log.Printf("[notify] draw=%s giver=%s send failed: %v", drawID, n.GiverID, err)
			failures = append(failures, Failure{GiverID: n.GiverID, GiverName: n.GiverName, Err: err})
		} else {
			metrics.NotificationsTotal.WithLabelValues(d.channel, "sent").Inc()
			report.Sent++
		}

		if d.revealer != nil {
			if err := d.revealer.Reveal(ctx, n); err != nil {
				metrics.NotificationsTotal.WithLabelValues("reveal", "failed").Inc()
				log.Printf("[notify] draw=%s giver=%s reveal failed: %v", drawID, n.GiverID, err)
			} else {
				metrics.NotificationsTotal.WithLabelValues("reveal", "sent").Inc()
				report.Revealed++
			}
		}
	}

	log.Printf("[notify] draw=%s sent=%d failed=%d revealed=%d",
		drawID, report.Sent, len(failures), report.Revealed)

	if len(failures) > 0 {
		return report, &DeliveryError{DrawID: drawID, Total: len(assignments), Failures: failures}
	}
	return report, nil
}

func (d *Dispatcher) send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.sender.Send(ctx, n)
}
