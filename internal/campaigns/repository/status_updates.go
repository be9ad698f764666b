package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"metagapura_portal_backend/internal/campaigns/domain"
)

// AuditRecord is one append-only lifecycle observation written by the app.
// Agent names mirror the engine's convention (broadcast_approve,
// broadcast_reject, broadcast_send, draft_cleanup).
type AuditRecord struct {
	CampaignID uuid.UUID
	AgentName  string
	Status     string
	Message    string
	Progress   int
	Metadata   map[string]interface{}
}

// StatusUpdates returns a bounded page of audit records for one campaign,
// newest first. The table is an unordered bag; ordering here is a courtesy,
// consumers still re-sort by timestamp.
func (r *Repo) StatusUpdates(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.StatusUpdate, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT campaign_id, agent_name, status, message, progress, metadata, created_at, updated_at
		FROM mgp_campaign_status_updates
		WHERE campaign_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, campaignID, limit)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("status updates: %w", err), err)
	}
	defer rows.Close()

	return scanStatusUpdates(rows)
}

// RecentStatusUpdates returns a bounded page of audit records across all
// campaigns, newest first.
func (r *Repo) RecentStatusUpdates(ctx context.Context, limit int) ([]domain.StatusUpdate, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT campaign_id, agent_name, status, message, progress, metadata, created_at, updated_at
		FROM mgp_campaign_status_updates
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("recent status updates: %w", err), err)
	}
	defer rows.Close()

	return scanStatusUpdates(rows)
}

// AppendStatusUpdate inserts one audit record. The table is append-only:
// nothing in the application ever updates or deletes these rows.
func (r *Repo) AppendStatusUpdate(ctx context.Context, record AuditRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO mgp_campaign_status_updates (campaign_id, agent_name, status, message, progress, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, query,
		record.CampaignID, record.AgentName, record.Status, record.Message, record.Progress, metadata,
	); err != nil {
		return classifyStore(fmt.Errorf("append status update: %w", err), err)
	}

	return nil
}

func scanStatusUpdates(rows pgx.Rows) ([]domain.StatusUpdate, error) {
	var results []domain.StatusUpdate

	for rows.Next() {
		var update domain.StatusUpdate
		var metadata []byte

		err := rows.Scan(
			&update.CampaignID, &update.AgentName, &update.Status, &update.Message,
			&update.Progress, &metadata, &update.CreatedAt, &update.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan status update: %w", err)
		}

		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &update.Metadata)
		}

		results = append(results, update)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status updates: %w", err)
	}

	return results, nil
}
