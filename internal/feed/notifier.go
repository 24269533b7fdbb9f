package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var ErrNotifierStopped = errors.New("feed notifier stopped")

var reconnectDelay = time.Second

// Listener delivers the payload of every notification on channel until ctx
// ends or the connection drops.
type Listener interface {
	Listen(ctx context.Context, channel string, onNotify func(payload string)) error
}

// PgListener listens on a connection taken out of the pool for good, so the
// LISTEN registration never leaks back into it.
type PgListener struct {
	pool *pgxpool.Pool
}

func NewPgListener(pool *pgxpool.Pool) *PgListener {
	return &PgListener{pool: pool}
}

func (l *PgListener) Listen(ctx context.Context, channel string, onNotify func(payload string)) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	conn := pooled.Hijack()
	defer func() {
		_ = conn.Close(context.Background())
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		onNotify(notification.Payload)
	}
}

type watcher struct {
	key     string
	changed chan struct{}
}

// Notifier fans change signals out to every watcher of a conversation key.
// Signals coalesce: a watcher that has not consumed the previous one does not
// queue another.
type Notifier struct {
	listener Listener
	channel  string
	log      zerolog.Logger

	watchers   map[string]map[*watcher]struct{}
	register   chan *watcher
	unregister chan *watcher
	broadcast  chan string
	done       chan struct{}
}

func NewNotifier(listener Listener, channel string, log zerolog.Logger) *Notifier {
	return &Notifier{
		listener:   listener,
		channel:    channel,
		log:        log,
		watchers:   make(map[string]map[*watcher]struct{}),
		register:   make(chan *watcher),
		unregister: make(chan *watcher),
		broadcast:  make(chan string, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the watcher registry and the listen loop until ctx ends.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)
	go n.listen(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case w := <-n.register:
			set, ok := n.watchers[w.key]
			if !ok {
				set = make(map[*watcher]struct{})
				n.watchers[w.key] = set
			}
			set[w] = struct{}{}
		case w := <-n.unregister:
			set, ok := n.watchers[w.key]
			if !ok {
				continue
			}
			delete(set, w)
			if len(set) == 0 {
				delete(n.watchers, w.key)
			}
		case key := <-n.broadcast:
			n.signal(key)
		}
	}
}

// Watch returns a channel that receives a value whenever key changes, and
// the function that stops watching.
func (n *Notifier) Watch(key string) (<-chan struct{}, func(), error) {
	w := &watcher{key: key, changed: make(chan struct{}, 1)}
	select {
	case n.register <- w:
	case <-n.done:
		return nil, nil, ErrNotifierStopped
	}

	return w.changed, func() {
		select {
		case n.unregister <- w:
		case <-n.done:
		}
	}, nil
}

// Publish signals watchers of key. An empty key signals everyone.
func (n *Notifier) Publish(key string) {
	select {
	case n.broadcast <- key:
	case <-n.done:
	}
}

func (n *Notifier) signal(key string) {
	if key == "" {
		for _, set := range n.watchers {
			notifyAll(set)
		}
		return
	}
	notifyAll(n.watchers[key])
}

func notifyAll(set map[*watcher]struct{}) {
	for w := range set {
		select {
		case w.changed <- struct{}{}:
		default:
		}
	}
}

func (n *Notifier) listen(ctx context.Context) {
	for {
		err := n.listener.Listen(ctx, n.channel, n.Publish)
		if ctx.Err() != nil {
			return
		}
		n.log.Warn().Err(err).Str("channel", n.channel).Msg("feed listener dropped, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		// Anything written while disconnected went unnoticed.
		n.Publish("")
	}
}
