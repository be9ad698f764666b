package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"metagapura_portal_backend/platform/apperr"
)

const (
	// AssetTypeImage filters campaign assets to images.
	AssetTypeImage = "image"
	// AssetUsagePrimaryVisual marks the preferred image for a campaign.
	AssetUsagePrimaryVisual = "primary_visual"
)

// Asset links an uploaded file to a campaign.
type Asset struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	Type       string
	UsageType  string
	FileKey    string
	CreatedAt  time.Time
}

// CampaignImage returns the campaign's image asset, preferring primary_visual.
func (r *Repo) CampaignImage(ctx context.Context, campaignID uuid.UUID) (Asset, error) {
	query := `
		SELECT id, campaign_id, type, usage_type, file_key, created_at
		FROM mgp_campaign_assets
		WHERE campaign_id = $1 AND type = $2
		ORDER BY (usage_type = $3) DESC, created_at DESC
		LIMIT 1`

	var asset Asset
	err := r.pool.QueryRow(ctx, query, campaignID, AssetTypeImage, AssetUsagePrimaryVisual).Scan(
		&asset.ID, &asset.CampaignID, &asset.Type, &asset.UsageType, &asset.FileKey, &asset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, apperr.NotFound("campaign image not found")
		}
		return Asset{}, classifyStore(fmt.Errorf("campaign image: %w", err), err)
	}

	return asset, nil
}

// CreateAsset links an uploaded file to a campaign.
func (r *Repo) CreateAsset(ctx context.Context, asset Asset) error {
	query := `
		INSERT INTO mgp_campaign_assets (id, campaign_id, type, usage_type, file_key)
		VALUES ($1, $2, $3, $4, $5)`

	id := asset.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	if _, err := r.pool.Exec(ctx, query, id, asset.CampaignID, asset.Type, asset.UsageType, asset.FileKey); err != nil {
		return classifyStore(fmt.Errorf("create asset: %w", err), err)
	}

	return nil
}
