// Package sse provides Server-Sent Events support for real-time campaign
// state updates. Push is a latency optimization; polling remains the
// correctness baseline, so dropping an event here is never fatal.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventStateChanged       EventType = "campaign_state_changed"
	EventBroadcastTriggered EventType = "broadcast_triggered"
)

// Event represents an SSE event payload
type Event struct {
	Type       EventType   `json:"type"`
	CampaignID uuid.UUID   `json:"campaignId,omitempty"`
	State      string      `json:"state,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client. A nil campaign filter receives
// every event.
type client struct {
	campaignID *uuid.UUID
	events     chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a new SSE service
func New() *Service {
	return &Service{
		clients: make(map[*client]struct{}),
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.events)
	}
}

// Publish fans an event out to every client interested in its campaign.
// Clients with a full buffer miss the event; their polling catches up.
func (s *Service) Publish(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for c := range s.clients {
		if c.campaignID != nil && event.CampaignID != uuid.Nil && *c.campaignID != event.CampaignID {
			continue
		}
		select {
		case c.events <- event:
		default:
		}
	}
}

// Handler returns a Gin handler for SSE connections. An optional campaign_id
// query parameter narrows the feed to one campaign.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var campaignFilter *uuid.UUID
		if raw := c.Query("campaign_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign_id"})
				return
			}
			campaignFilter = &id
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			campaignID: campaignFilter,
			events:     make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"filtered": campaignFilter != nil})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close shuts down the SSE service
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		close(c.events)
	}
	s.clients = make(map[*client]struct{})
}
