package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"metagapura_portal_backend/internal/campaigns/domain"
)

// AudienceRows returns the campaign's rows with non-empty generated content.
func (r *Repo) AudienceRows(ctx context.Context, campaignID uuid.UUID) ([]domain.AudienceRow, error) {
	query := `
		SELECT id, campaign_id, audience_id, content, target_status, channel, scheduled_at, metadata, created_at, updated_at
		FROM mgp_campaign_audiences
		WHERE campaign_id = $1 AND content IS NOT NULL AND content <> ''
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("audience rows: %w", err), err)
	}
	defer rows.Close()

	return scanAudienceRows(rows)
}

// AudienceRowsFor returns every row matching (campaign, audience), duplicates included.
func (r *Repo) AudienceRowsFor(ctx context.Context, campaignID, audienceID uuid.UUID) ([]domain.AudienceRow, error) {
	query := `
		SELECT id, campaign_id, audience_id, content, target_status, channel, scheduled_at, metadata, created_at, updated_at
		FROM mgp_campaign_audiences
		WHERE campaign_id = $1 AND audience_id = $2
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, campaignID, audienceID)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("audience rows for pair: %w", err), err)
	}
	defer rows.Close()

	return scanAudienceRows(rows)
}

// LinkedAudienceIDs returns the distinct audience ids linked to a campaign.
func (r *Repo) LinkedAudienceIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT audience_id
		FROM mgp_campaign_audiences
		WHERE campaign_id = $1`

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("linked audience ids: %w", err), err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan audience id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audience ids: %w", err)
	}

	return ids, nil
}

// SetTargetStatus updates target_status for every row whose audience id is in
// the set. All duplicate rows for a pair are touched on purpose.
func (r *Repo) SetTargetStatus(ctx context.Context, campaignID uuid.UUID, audienceIDs []uuid.UUID, status domain.DeliveryStatus) (int64, error) {
	if len(audienceIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE mgp_campaign_audiences
		SET target_status = $3, updated_at = now()
		WHERE campaign_id = $1 AND audience_id = ANY($2)`

	result, err := r.pool.Exec(ctx, query, campaignID, audienceIDs, status)
	if err != nil {
		return 0, classifyStore(fmt.Errorf("set target status: %w", err), err)
	}

	return result.RowsAffected(), nil
}

// RejectAllAudienceRows sets every linked row to rejected and stamps the
// rejection note into metadata.
func (r *Repo) RejectAllAudienceRows(ctx context.Context, campaignID uuid.UUID, note string) (int64, error) {
	query := `
		UPDATE mgp_campaign_audiences
		SET target_status = $2,
			metadata = coalesce(metadata, '{}'::jsonb) || jsonb_build_object('rejection_note', $3::text),
			updated_at = now()
		WHERE campaign_id = $1`

	result, err := r.pool.Exec(ctx, query, campaignID, domain.DeliveryRejected, note)
	if err != nil {
		return 0, classifyStore(fmt.Errorf("reject audience rows: %w", err), err)
	}

	return result.RowsAffected(), nil
}

// UpdateAudienceContent applies content/schedule changes to all rows matching
// (campaign, audience).
func (r *Repo) UpdateAudienceContent(ctx context.Context, campaignID, audienceID uuid.UUID, content *string, scheduledAt *time.Time) (int64, error) {
	query := `
		UPDATE mgp_campaign_audiences
		SET content = COALESCE($3, content),
			scheduled_at = COALESCE($4, scheduled_at),
			updated_at = now()
		WHERE campaign_id = $1 AND audience_id = $2`

	result, err := r.pool.Exec(ctx, query, campaignID, audienceID, content, scheduledAt)
	if err != nil {
		return 0, classifyStore(fmt.Errorf("update audience content: %w", err), err)
	}

	return result.RowsAffected(), nil
}

// GetAudiences batch-fetches recipient records by id.
func (r *Repo) GetAudiences(ctx context.Context, ids []uuid.UUID) ([]domain.Audience, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, phone, telegram_handle, whatsapp_opt_in, telegram_opt_in
		FROM mgp_audiences
		WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("get audiences: %w", err), err)
	}
	defer rows.Close()

	var results []domain.Audience
	for rows.Next() {
		var a domain.Audience
		if err := rows.Scan(&a.ID, &a.Name, &a.Phone, &a.TelegramHandle, &a.WhatsAppOptIn, &a.TelegramOptIn); err != nil {
			return nil, fmt.Errorf("scan audience: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audiences: %w", err)
	}

	return results, nil
}

func scanAudienceRows(rows pgx.Rows) ([]domain.AudienceRow, error) {
	var results []domain.AudienceRow

	for rows.Next() {
		var row domain.AudienceRow
		var metadata []byte

		err := rows.Scan(
			&row.ID, &row.CampaignID, &row.AudienceID, &row.Content, &row.TargetStatus,
			&row.Channel, &row.ScheduledAt, &metadata, &row.CreatedAt, &row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audience row: %w", err)
		}

		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &row.Metadata)
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audience rows: %w", err)
	}

	return results, nil
}
