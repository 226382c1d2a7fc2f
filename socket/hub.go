package socket

import (
	"context"
	"sync"

	"jotter/pkg/logger"
)

// waiter is one subscription's wake-up channel.
type waiter struct {
	token string
	ch    chan struct{}
}

// Hub fans write notifications out to the watchers of the same jot. It only carries
// "something changed" hints; content always comes from the store.
type Hub struct {
	rooms      map[string]map[*waiter]bool
	register   chan *waiter
	unregister chan *waiter
	broadcast  chan string
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*waiter]bool),
		register:   make(chan *waiter),
		unregister: make(chan *waiter),
		broadcast:  make(chan string),
		done:       make(chan struct{}),
	}
}

// Run owns the rooms until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case w := <-h.register:
			if h.rooms[w.token] == nil {
				h.rooms[w.token] = make(map[*waiter]bool)
			}
			h.rooms[w.token][w] = true

		case w := <-h.unregister:
			if _, ok := h.rooms[w.token][w]; ok {
				delete(h.rooms[w.token], w)
				if len(h.rooms[w.token]) == 0 {
					delete(h.rooms, w.token)
				}
			}

		case token := <-h.broadcast:
			for w := range h.rooms[token] {
				select {
				case w.ch <- struct{}{}:
				default:
					// A wake-up is already pending, one is enough.
				}
			}
		}
	}
}

// Subscribe returns a channel that receives a value after writes to token, and a func that
// releases it. Once the hub has stopped the channel simply never fires.
func (h *Hub) Subscribe(token string) (<-chan struct{}, func()) {
	w := &waiter{token: token, ch: make(chan struct{}, 1)}
	select {
	case h.register <- w:
	case <-h.done:
		return w.ch, func() {}
	}

	var once sync.Once
	return w.ch, func() {
		once.Do(func() {
			select {
			case h.unregister <- w:
			case <-h.done:
			}
		})
	}
}

// Notify wakes every watcher of token.
func (h *Hub) Notify(token string) {
	select {
	case h.broadcast <- token:
	case <-h.done:
		logger.Sugar.Debugf("Hub stopped, dropping notification")
	}
}
