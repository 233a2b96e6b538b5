package alert

import (
	"context"

	"solana-buybot/internal/domain"
)

// Dispatcher renders buy alerts and hands them to a Notifier. Delivery is at
// most once: a failed send is the caller's to log, never to replay.
type Dispatcher struct {
	notifier Notifier
}

// NewDispatcher creates a Dispatcher on top of the given notifier.
func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// Dispatch formats and sends one alert.
func (d *Dispatcher) Dispatch(ctx context.Context, a *domain.BuyAlert) error {
	return d.notifier.Send(ctx, Format(a))
}
