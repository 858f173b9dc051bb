package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"linkedpost/domain/model"
	"linkedpost/domain/repository"
)

// Hub keeps per-user SSE subscribers and pushes post events to them. It is
// also a post event sink, so the sweep reaches open browser tabs directly.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan model.PostEvent]struct{}
}

var _ repository.IPostEvents = (*Hub)(nil)

func NewPostHub() *Hub {
	return &Hub{users: make(map[string]map[chan model.PostEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan model.PostEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	// Initial comment to keep connection open
	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan model.PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan model.PostEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan model.PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Subscribers reports how many streams userID has open.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Publish broadcasts to all subscribers of the user who owns the post. Slow
// subscribers miss events rather than block the sweep.
func (h *Hub) Publish(_ context.Context, event model.PostEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[event.UserID] {
		select { // non-blocking
		case ch <- event:
		default:
		}
	}
	return nil
}
