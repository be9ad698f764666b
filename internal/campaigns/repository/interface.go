package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
)

// Repository is the status store accessor for campaign lifecycle rows.
// It is a stateless, pool-backed service constructed once at process start.
type Repository interface {
	// GetCampaign fetches a campaign with zero-or-one semantics
	// (apperr.NotFound when absent, never a raised "exactly one" error).
	GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error)
	// LatestDraftedCampaign returns the most-recently-updated campaign in
	// content_drafted status.
	LatestDraftedCampaign(ctx context.Context) (Campaign, error)
	// ListDraftedCampaigns returns every campaign in content_drafted status,
	// most recently updated first.
	ListDraftedCampaigns(ctx context.Context) ([]Campaign, error)
	// SetCampaignStatus updates the authoritative status column.
	SetCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error

	// StatusUpdates returns a bounded page of audit records for a campaign,
	// newest first.
	StatusUpdates(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.StatusUpdate, error)
	// RecentStatusUpdates returns a bounded page of audit records across all
	// campaigns, newest first. Used by the audit-log fallback to locate the
	// current draft when the campaign table is unreadable.
	RecentStatusUpdates(ctx context.Context, limit int) ([]domain.StatusUpdate, error)
	// AppendStatusUpdate inserts one append-only audit record.
	AppendStatusUpdate(ctx context.Context, record AuditRecord) error

	// AudienceRows returns the campaign's audience rows that carry non-empty
	// generated content. Duplicates per (campaign, audience) are returned
	// as-is; deduplication is the caller's concern.
	AudienceRows(ctx context.Context, campaignID uuid.UUID) ([]domain.AudienceRow, error)
	// AudienceRowsFor returns every row matching (campaign, audience),
	// duplicates included.
	AudienceRowsFor(ctx context.Context, campaignID, audienceID uuid.UUID) ([]domain.AudienceRow, error)
	// LinkedAudienceIDs returns the distinct audience ids linked to a campaign.
	LinkedAudienceIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error)
	// SetTargetStatus updates target_status on every row whose audience id is
	// in the given set. Returns the number of rows touched.
	SetTargetStatus(ctx context.Context, campaignID uuid.UUID, audienceIDs []uuid.UUID, status domain.DeliveryStatus) (int64, error)
	// RejectAllAudienceRows sets every linked row to rejected and stamps a
	// rejection note in metadata.
	RejectAllAudienceRows(ctx context.Context, campaignID uuid.UUID, note string) (int64, error)
	// UpdateAudienceContent applies content/schedule changes to ALL rows
	// matching (campaign, audience); updating only one would leave a stale
	// duplicate for a later read to surface.
	UpdateAudienceContent(ctx context.Context, campaignID, audienceID uuid.UUID, content *string, scheduledAt *time.Time) (int64, error)

	// GetAudiences batch-fetches recipient records by id.
	GetAudiences(ctx context.Context, ids []uuid.UUID) ([]domain.Audience, error)

	// CampaignImage returns the campaign's image asset, preferring a
	// primary_visual usage tag.
	CampaignImage(ctx context.Context, campaignID uuid.UUID) (Asset, error)
	// CreateAsset links an uploaded file to a campaign.
	CreateAsset(ctx context.Context, asset Asset) error
}
