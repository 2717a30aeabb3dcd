// Package notify fans new-request events out to responders who can act on
// them. Delivery is best effort: per-recipient failures are collected and
// logged by the caller, never allowed to fail the request creation.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"careflow/presence"
	"careflow/request"
)

// Sender delivers one notification to one address.
type Sender interface {
	Send(ctx context.Context, address, title, body string) error
}

// PresenceLister supplies the responder presence records the dispatcher
// filters for eligibility.
type PresenceLister interface {
	List(ctx context.Context) ([]presence.Record, error)
}

// Config tunes the fan-out.
type Config struct {
	// MaxInFlight bounds concurrent sends. Zero means 4.
	MaxInFlight int
	// PerSendTimeout bounds each individual delivery. Zero means 5s.
	PerSendTimeout time.Duration
	// OverseerAddresses receive the notification when no responder is both
	// on shift and reachable. Empty keeps the observed behavior: nobody is
	// pushed and the overseer discovers the request through the live feed.
	OverseerAddresses []string
}

type Dispatcher struct {
	sender   Sender
	presence PresenceLister
	cfg      Config
}

func NewDispatcher(sender Sender, lister PresenceLister, cfg Config) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.PerSendTimeout <= 0 {
		cfg.PerSendTimeout = 5 * time.Second
	}
	return &Dispatcher{sender: sender, presence: lister, cfg: cfg}
}

// Dispatch sends one notification per on-shift responder with a registered
// address, with bounded concurrency and a per-recipient timeout. It returns
// how many deliveries succeeded plus an aggregated error for the ones that
// did not. When zero responders are eligible, the configured overseer
// addresses are targeted instead.
func (d *Dispatcher) Dispatch(ctx context.Context, req request.Request) (int, error) {
	records, err := d.presence.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: list presence: %w", err)
	}

	addresses := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Notifiable() {
			addresses = append(addresses, *rec.NotifyAddress)
		}
	}
	if len(addresses) == 0 {
		addresses = append(addresses, d.cfg.OverseerAddresses...)
	}
	if len(addresses) == 0 {
		return 0, nil
	}

	title := strings.ToUpper(string(req.Category)[:1]) + string(req.Category)[1:]
	body := fmt.Sprintf("%s request from recipient", strings.ToUpper(string(req.Urgency)))

	var (
		mu       sync.Mutex
		notified int
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxInFlight)
	for _, address := range addresses {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, d.cfg.PerSendTimeout)
			defer cancel()

			err := d.sender.Send(sendCtx, address, title, body)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Errorf("notify %s: %w", address, err))
				return nil
			}
			notified++
			return nil
		})
	}
	// Send errors are contained above; Wait only reports context failure.
	if err := g.Wait(); err != nil {
		failures = append(failures, err)
	}

	return notified, errors.Join(failures...)
}
