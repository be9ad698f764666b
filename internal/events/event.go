// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"metagapura_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Campaign Lifecycle Events
// =============================================================================

// CampaignStateChanged is published whenever the resolved lifecycle state of
// a campaign changes. The SSE feed relays it to subscribed clients.
type CampaignStateChanged struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	State      string    `json:"state"`
}

func (e CampaignStateChanged) EventName() string { return "mgp_campaigns.state.changed" }

// BroadcastTriggered is published after a send command has dispatched the
// broadcast webhook, whatever the engine answered.
type BroadcastTriggered struct {
	BaseEvent
	CampaignID     uuid.UUID `json:"campaignId"`
	RecipientCount int       `json:"recipientCount"`
	Accepted       bool      `json:"accepted"`
}

func (e BroadcastTriggered) EventName() string { return "mgp_campaigns.broadcast.triggered" }

// DraftsCleaned is published when the scheduler force-rejects stale drafts.
type DraftsCleaned struct {
	BaseEvent
	KeptCampaignID *uuid.UUID `json:"keptCampaignId,omitempty"`
	ForceRejected  int        `json:"forceRejected"`
}

func (e DraftsCleaned) EventName() string { return "mgp_campaigns.drafts.cleaned" }
