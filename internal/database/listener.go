// listener.go turns PostgreSQL LISTEN/NOTIFY into per-template insert
// subscriptions.
//
// The row_inserted trigger publishes {table, id, template_id} for every new
// signature capture and signed document. One pq.Listener connection receives
// them all and fans each one out to the subscribers for that table and
// template.
package database

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"
)

// InsertChannel is the NOTIFY channel the trigger publishes to.
const InsertChannel = "row_inserted"

// subscriberBuffer is how many events a slow subscriber may lag behind
// before events are dropped for it.
const subscriberBuffer = 16

// InsertEvent identifies one inserted row. Subscribers fetch the row itself.
type InsertEvent struct {
	Table      string `json:"table"`
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
}

type subscription struct {
	table      string
	templateID string
	ch         chan InsertEvent
}

// InsertListener is the push-subscription primitive: OnInsert(table, filter).
type InsertListener struct {
	listener *pq.Listener

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
	done   chan struct{}
	once   sync.Once
}

// NewInsertListener opens a dedicated LISTEN connection and starts
// dispatching notifications.
func NewInsertListener(databaseURL string) (*InsertListener, error) {
	l := newInsertListener()

	// Go Pattern: pq.Listener reconnects on its own. The callback only
	// reports connection state changes so they show up in the logs.
	l.listener = pq.NewListener(databaseURL, 2*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
				log.Printf("⚠️  Insert listener connection problem: %v", err)
			case pq.ListenerEventReconnected:
				log.Println("✅ Insert listener reconnected")
			}
		})

	if err := l.listener.Listen(InsertChannel); err != nil {
		l.listener.Close()
		return nil, err
	}

	go l.run()
	return l, nil
}

func newInsertListener() *InsertListener {
	return &InsertListener{
		subs: make(map[int]*subscription),
		done: make(chan struct{}),
	}
}

// run receives notifications until Close.
func (l *InsertListener) run() {
	for {
		select {
		case n := <-l.listener.Notify:
			if n == nil {
				// A nil notification follows a reconnect; anything sent while
				// disconnected is lost.
				log.Println("⚠️  Insert listener reconnected, notifications may have been missed")
				continue
			}
			l.dispatch(n.Extra)
		case <-time.After(90 * time.Second):
			// Check the connection is still alive when things are quiet.
			go func() {
				if err := l.listener.Ping(); err != nil {
					log.Printf("⚠️  Insert listener ping failed: %v", err)
				}
			}()
		case <-l.done:
			return
		}
	}
}

// dispatch decodes a payload and delivers it to matching subscribers.
// Delivery never blocks the listener; a full subscriber misses the event.
func (l *InsertListener) dispatch(payload string) {
	var ev InsertEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("⚠️  Ignoring malformed %s payload: %v", InsertChannel, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.subs {
		if s.table != ev.Table || s.templateID != ev.TemplateID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			log.Printf("⚠️  Dropping %s insert %s: subscriber is not keeping up", ev.Table, ev.ID)
		}
	}
}

// OnInsert streams inserts into table for templateID until ctx ends, then
// closes the channel.
func (l *InsertListener) OnInsert(ctx context.Context, table, templateID string) <-chan InsertEvent {
	s := &subscription{
		table:      table,
		templateID: templateID,
		ch:         make(chan InsertEvent, subscriberBuffer),
	}

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = s
	l.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-l.done:
		}
		l.mu.Lock()
		delete(l.subs, id)
		close(s.ch)
		l.mu.Unlock()
	}()

	return s.ch
}

// Subscribers returns the number of live subscriptions.
func (l *InsertListener) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Close stops dispatching, ends every subscription and closes the connection.
func (l *InsertListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		if l.listener != nil {
			err = l.listener.Close()
		}
	})
	return err
}
