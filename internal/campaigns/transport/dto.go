package transport

import (
	"time"

	"github.com/google/uuid"
)

// DraftRecipient is one reviewable entry in the assembled draft.
type DraftRecipient struct {
	AudienceID          uuid.UUID  `json:"audience_id"`
	Name                string     `json:"name"`
	Channel             string     `json:"channel"`
	SendTo              string     `json:"send_to"`
	Content             string     `json:"content"`
	CharacterCount      int        `json:"character_count"`
	GuardrailsTag       string     `json:"guardrails_tag"`
	GuardrailViolations []string   `json:"guardrail_violations,omitempty"`
	MatchReason         string     `json:"match_reason,omitempty"`
	TargetStatus        string     `json:"target_status"`
	ScheduledAt         *time.Time `json:"scheduled_at,omitempty"`
}

// DraftPayload is the denormalized operator-reviewable view of a campaign.
type DraftPayload struct {
	CampaignID   uuid.UUID        `json:"campaign_id"`
	Name         string           `json:"name"`
	Objective    string           `json:"objective"`
	Tags         []string         `json:"tags,omitempty"`
	OriginNotes  string           `json:"origin_notes,omitempty"`
	ImageURL     string           `json:"image_url,omitempty"`
	TotalMatched int              `json:"total_matched"`
	Recipients   []DraftRecipient `json:"recipients"`
	// Warnings lists the sub-queries that were skipped because of permission
	// failures; the payload is still served.
	Warnings []string `json:"warnings,omitempty"`
}

// GetDraftResponse wraps a draft lookup. Draft is null (with a 200) when no
// campaign is awaiting review, which keeps the polling client trivial.
type GetDraftResponse struct {
	Draft      *DraftPayload `json:"draft"`
	CampaignID *uuid.UUID    `json:"campaign_id,omitempty"`
}

// StateResponse reports the resolved lifecycle state for polling clients.
type StateResponse struct {
	CampaignID *uuid.UUID `json:"campaign_id,omitempty"`
	State      string     `json:"state"`
}

// ApproveRequest approves a subset of a campaign's recipients.
type ApproveRequest struct {
	CampaignID  uuid.UUID   `json:"campaign_id" validate:"required"`
	AudienceIDs []uuid.UUID `json:"audience_ids" validate:"required,min=1"`
}

// ApproveResponse reports the selection split.
type ApproveResponse struct {
	Success       bool `json:"success"`
	ApprovedCount int  `json:"approved_count"`
	RejectedCount int  `json:"rejected_count"`
}

// RejectRequest rejects a whole campaign.
type RejectRequest struct {
	CampaignID uuid.UUID `json:"campaign_id" validate:"required"`
}

// RejectResponse reports the outcome of a reject command.
type RejectResponse struct {
	Success bool `json:"success"`
}

// SendRequest triggers the broadcast for approved recipients.
type SendRequest struct {
	CampaignID  uuid.UUID   `json:"campaign_id" validate:"required"`
	AudienceIDs []uuid.UUID `json:"audience_ids" validate:"required,min=1"`
}

// SendResult is the per-recipient outcome of a send command.
type SendResult struct {
	AudienceID uuid.UUID `json:"audience_id"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// SendResponse reports the batch outcome of a send command.
type SendResponse struct {
	Success     bool         `json:"success"`
	Results     []SendResult `json:"results"`
	SentCount   int          `json:"sent_count"`
	FailedCount int          `json:"failed_count"`
}

// UpdateContentRequest edits one recipient's message and/or schedule.
type UpdateContentRequest struct {
	CampaignID       uuid.UUID  `json:"campaign_id" validate:"required"`
	AudienceID       uuid.UUID  `json:"audience_id" validate:"required"`
	BroadcastContent *string    `json:"broadcast_content,omitempty" validate:"omitempty,min=1"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
}

// UpdateContentResponse reports the outcome of a content update.
type UpdateContentResponse struct {
	Success bool `json:"success"`
}

// CleanupResponse reports how many stale drafts were force-rejected.
type CleanupResponse struct {
	Success       bool `json:"success"`
	ForceRejected int  `json:"force_rejected"`
}

// CreateBroadcastResponse returns the engine's identifiers for a new campaign.
type CreateBroadcastResponse struct {
	CampaignID  string `json:"campaign_id"`
	ExecutionID string `json:"execution_id,omitempty"`
}
