package chatws

import (
	"context"
	"sync"
)

// Hub tracks open connections per participant so they can be closed
// together on shutdown.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
	done       chan struct{}
	doneOnce   sync.Once
}

type countRequest struct {
	userID string
	reply  chan int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
	}
}

// Run owns the registry until ctx ends, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				client.closeSend()
				continue
			}
			delete(set, client)
			client.closeSend()
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.userID])
		}
	}
}

// Register returns false when the hub has already shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Connections reports how many connections userID has open.
func (h *Hub) Connections(userID string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{userID: userID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) closeAll() {
	for userID, set := range h.clients {
		for client := range set {
			client.closeSend()
			_ = client.conn.Close()
		}
		delete(h.clients, userID)
	}
}
