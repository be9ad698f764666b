// Package domain holds the campaign lifecycle state machine and the pure
// reconciliation rules that compensate for uncoordinated writers: the web
// app and the external workflow engine both mutate the same rows, so
// current state is always re-derived by max-timestamp selection.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the single logical lifecycle state the UI and command handlers key off of.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateDrafted    State = "drafted"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
)

// CampaignStatus is the authoritative status column on the campaign row.
type CampaignStatus string

const (
	CampaignStatusContentDrafted CampaignStatus = "content_drafted"
	CampaignStatusApproved       CampaignStatus = "approved"
	CampaignStatusRejected       CampaignStatus = "rejected"
	CampaignStatusSent           CampaignStatus = "sent"
)

// DeliveryStatus is the per-recipient target delivery status.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliveryApproved DeliveryStatus = "approved"
	DeliveryRejected DeliveryStatus = "rejected"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
)

// Channel is the delivery channel for a recipient.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// Guardrail tag display values. The legacy stored value "approved" is
// normalized to "passed"; absent tags mean the content was never evaluated.
const (
	GuardrailPassed      = "passed"
	GuardrailNeedsReview = "needs_review"
)

// StatusUpdate is one append-only observability record. The table it comes
// from is an unordered bag of observations written by multiple agents; only
// timestamps order it.
type StatusUpdate struct {
	CampaignID uuid.UUID
	AgentName  string
	Status     string
	Message    string
	Progress   int
	Metadata   map[string]interface{}
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StateFromCampaignStatus maps the authoritative campaign row status to a
// logical state. ok is false for statuses that carry no lifecycle meaning.
func StateFromCampaignStatus(status CampaignStatus) (State, bool) {
	switch status {
	case CampaignStatusContentDrafted:
		return StateDrafted, true
	case CampaignStatusApproved, CampaignStatusSent:
		// approved implies subsequently sent; both render the same view
		return StateApproved, true
	case CampaignStatusRejected:
		return StateRejected, true
	default:
		return StateIdle, false
	}
}

// agent statuses that indicate an in-flight run; these block new submissions
// and override every lifecycle marker regardless of recency.
var processingStatuses = map[string]struct{}{
	"processing": {},
	"thinking":   {},
}

// StateFromUpdates derives a lifecycle state from the audit log alone.
// This is the permission-degraded fallback for deployments where the
// campaign table is not readable; the campaign row status always wins when
// both sources are available.
//
// Updates may arrive in any order; they are re-sorted by update time
// descending before scanning. The most recent record containing a lifecycle
// marker decides the state, with sent/approved > rejected > drafted as the
// tie-break within a single record.
func StateFromUpdates(updates []StatusUpdate) State {
	if len(updates) == 0 {
		return StateIdle
	}

	sorted := append([]StatusUpdate(nil), updates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	for _, update := range sorted {
		if _, ok := processingStatuses[strings.ToLower(strings.TrimSpace(update.Status))]; ok {
			return StateProcessing
		}
	}

	for _, update := range sorted {
		message := strings.ToLower(update.Message)
		switch {
		case strings.Contains(message, "sent"), strings.Contains(message, "approved"):
			return StateApproved
		case strings.Contains(message, "rejected"):
			return StateRejected
		case strings.Contains(message, "drafted"):
			return StateDrafted
		}
	}

	return StateIdle
}

// AudienceRowMeta is the structured metadata blob on a campaign-audience row.
type AudienceRowMeta struct {
	GuardrailsTag       string   `json:"guardrails_tag,omitempty"`
	GuardrailViolations []string `json:"guardrail_violations,omitempty"`
	MatchReason         string   `json:"match_reason,omitempty"`
	SendOutcome         string   `json:"send_outcome,omitempty"`
	RejectionNote       string   `json:"rejection_note,omitempty"`
}

// AudienceRow is one (campaign, recipient) pairing with generated content.
type AudienceRow struct {
	ID           uuid.UUID
	CampaignID   uuid.UUID
	AudienceID   uuid.UUID
	Content      string
	TargetStatus DeliveryStatus
	Channel      string
	ScheduledAt  *time.Time
	Metadata     AudienceRowMeta
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DedupeByAudience collapses duplicate (campaign, audience) rows, keeping the
// most-recently-updated row per audience. Duplicates are a known data-quality
// hazard: the store has no uniqueness constraint and two writers race on it.
// Input order of first appearance is preserved for the winners.
func DedupeByAudience(rows []AudienceRow) []AudienceRow {
	winners := make(map[uuid.UUID]AudienceRow, len(rows))
	order := make([]uuid.UUID, 0, len(rows))

	for _, row := range rows {
		current, seen := winners[row.AudienceID]
		if !seen {
			winners[row.AudienceID] = row
			order = append(order, row.AudienceID)
			continue
		}
		if row.UpdatedAt.After(current.UpdatedAt) {
			winners[row.AudienceID] = row
		}
	}

	result := make([]AudienceRow, 0, len(order))
	for _, id := range order {
		result = append(result, winners[id])
	}
	return result
}

// Audience is a read-only recipient entity owned by the external system.
type Audience struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	TelegramHandle string
	WhatsAppOptIn  bool
	TelegramOptIn  bool
}

// SelectChannel picks the delivery channel for a recipient: WhatsApp when
// opted in, Telegram when a handle exists, WhatsApp as the default.
func SelectChannel(a Audience) Channel {
	if a.WhatsAppOptIn {
		return ChannelWhatsApp
	}
	if strings.TrimSpace(a.TelegramHandle) != "" {
		return ChannelTelegram
	}
	return ChannelWhatsApp
}

// NormalizeGuardrailTag maps stored guardrail tags to display values.
func NormalizeGuardrailTag(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return GuardrailNeedsReview
	}
	if strings.EqualFold(trimmed, "approved") {
		return GuardrailPassed
	}
	return trimmed
}
