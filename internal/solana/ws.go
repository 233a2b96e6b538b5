package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to logs mentioning any of the filter
	// addresses. The returned channel stays valid across reconnects.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error)

	// Close closes the WebSocket connection and all subscriptions.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses.
	// Empty subscribes to all logs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// LogSubscription is one live logs subscription.
type LogSubscription struct {
	// C delivers notifications. Delivery stops after Unsubscribe; the
	// channel itself is closed on client shutdown.
	C <-chan LogNotification

	cancel func()
}

// Unsubscribe cancels the subscription and stops delivery.
func (s *LogSubscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}
