package sse

import (
	"testing"

	"github.com/google/uuid"
)

func TestPublishFansOutToAllUnfilteredClients(t *testing.T) {
	svc := New()
	defer svc.Close()

	first := &client{events: make(chan Event, 4)}
	second := &client{events: make(chan Event, 4)}
	svc.addClient(first)
	svc.addClient(second)

	svc.Publish(Event{Type: EventStateChanged, CampaignID: uuid.New(), State: "drafted"})

	for _, c := range []*client{first, second} {
		select {
		case event := <-c.events:
			if event.Type != EventStateChanged {
				t.Errorf("event type = %q, want campaign_state_changed", event.Type)
			}
		default:
			t.Error("client did not receive the event")
		}
	}
}

func TestPublishRespectsCampaignFilter(t *testing.T) {
	svc := New()
	defer svc.Close()

	watched := uuid.New()
	other := uuid.New()

	filtered := &client{campaignID: &watched, events: make(chan Event, 4)}
	svc.addClient(filtered)

	svc.Publish(Event{Type: EventStateChanged, CampaignID: other, State: "approved"})
	select {
	case event := <-filtered.events:
		t.Errorf("filtered client received foreign event %+v", event)
	default:
	}

	svc.Publish(Event{Type: EventStateChanged, CampaignID: watched, State: "approved"})
	select {
	case event := <-filtered.events:
		if event.State != "approved" {
			t.Errorf("state = %q, want approved", event.State)
		}
	default:
		t.Error("filtered client missed its campaign's event")
	}
}

func TestPublishBroadcastsUnscopedEventsToFilteredClients(t *testing.T) {
	svc := New()
	defer svc.Close()

	watched := uuid.New()
	filtered := &client{campaignID: &watched, events: make(chan Event, 4)}
	svc.addClient(filtered)

	// Events without a campaign reach everyone.
	svc.Publish(Event{Type: EventBroadcastTriggered})
	select {
	case <-filtered.events:
	default:
		t.Error("unscoped event did not reach the filtered client")
	}
}

func TestPublishDropsEventsForSlowClients(t *testing.T) {
	svc := New()
	defer svc.Close()

	slow := &client{events: make(chan Event, 1)}
	svc.addClient(slow)

	svc.Publish(Event{Type: EventBroadcastTriggered})
	svc.Publish(Event{Type: EventBroadcastTriggered}) // buffer full, must not block

	if got := len(slow.events); got != 1 {
		t.Errorf("buffered events = %d, want 1", got)
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	svc := New()

	c := &client{events: make(chan Event, 1)}
	svc.addClient(c)
	svc.removeClient(c)
	svc.removeClient(c) // second removal must not close twice

	if _, open := <-c.events; open {
		t.Error("events channel still open after removal")
	}
}
