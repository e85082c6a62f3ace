package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/bizvistar/billing-backend/pkg/logger"
)

const (
	listenMinReconnect = 2 * time.Second
	listenMaxReconnect = time.Minute
)

// Notifier turns Postgres NOTIFY messages from the outbox insert trigger into
// wake-ups for the publisher. Signals coalesce: a burst of inserts wakes the
// publisher once and the next batch drains them all.
type Notifier struct {
	listener *pq.Listener
	wake     chan struct{}
	done     chan struct{}
}

// Listen opens a dedicated LISTEN connection on channel.
func Listen(ctx context.Context, dsn, channel string, logg *logger.Logger) (*Notifier, error) {
	if dsn == "" || channel == "" {
		return nil, errors.New("dsn and channel are required")
	}
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil && logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"channel": channel, "listener_event": int(ev), "error": err.Error()}), "outbox listener connection event")
		}
	}
	listener := pq.NewListener(dsn, listenMinReconnect, listenMaxReconnect, report)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, err
	}
	n := newNotifier()
	n.listener = listener
	go n.pump(ctx, listener.Notify)
	return n, nil
}

func newNotifier() *Notifier {
	return &Notifier{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// pump forwards notifications until ctx ends or the source closes. A nil
// notification follows a reconnect; it wakes the publisher too because
// inserts may have been missed while disconnected.
func (n *Notifier) pump(ctx context.Context, source <-chan *pq.Notification) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-source:
			if !ok {
				return
			}
			select {
			case n.wake <- struct{}{}:
			default:
			}
		}
	}
}

// Wake fires after at least one outbox insert since the last receive.
func (n *Notifier) Wake() <-chan struct{} {
	if n == nil {
		return nil
	}
	return n.wake
}

func (n *Notifier) Close() error {
	if n == nil || n.listener == nil {
		return nil
	}
	return n.listener.Close()
}
