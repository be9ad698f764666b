package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/platform/apperr"
)

const campaignNotFoundMessage = "campaign not found"

// pgInsufficientPrivilege is the SQLSTATE for permission-denied reads.
// Restricted deployments deny the campaign table; callers degrade to the
// audit-log fallback when they see apperr.KindForbidden.
const pgInsufficientPrivilege = "42501"

// Campaign is one broadcast effort with a single authoritative status.
type Campaign struct {
	ID        uuid.UUID
	Name      string
	Objective string
	Metadata  CampaignMeta
	Status    domain.CampaignStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CampaignMeta is the free-form metadata blob on a campaign row.
type CampaignMeta struct {
	ResearchPayload  *ResearchPayload  `json:"research_payload,omitempty"`
	MatchmakerResult *MatchmakerResult `json:"matchmaker_result,omitempty"`
	AdminNotes       string            `json:"admin_notes,omitempty"`
	StrategyTags     []string          `json:"strategy_tags,omitempty"`
}

// ResearchPayload is the engine's planning output stored in campaign metadata.
type ResearchPayload struct {
	CampaignBrief *CampaignBrief `json:"campaign_brief,omitempty"`
}

// CampaignBrief carries display fields when the structured columns are empty.
type CampaignBrief struct {
	Title     string   `json:"title,omitempty"`
	Objective string   `json:"objective,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// MatchmakerResult is the engine's audience matching output.
type MatchmakerResult struct {
	TotalMatched int `json:"total_matched,omitempty"`
}

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new campaign store repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetCampaign retrieves a campaign by its ID.
func (r *Repo) GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error) {
	query := `
		SELECT id, name, objective, metadata, status, created_at, updated_at
		FROM mgp_campaigns
		WHERE id = $1`

	campaign, err := r.scanCampaign(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMessage)
		}
		return Campaign{}, classifyStore(fmt.Errorf("get campaign: %w", err), err)
	}

	return campaign, nil
}

// LatestDraftedCampaign retrieves the most recently updated campaign awaiting review.
func (r *Repo) LatestDraftedCampaign(ctx context.Context) (Campaign, error) {
	query := `
		SELECT id, name, objective, metadata, status, created_at, updated_at
		FROM mgp_campaigns
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	campaign, err := r.scanCampaign(r.pool.QueryRow(ctx, query, domain.CampaignStatusContentDrafted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMessage)
		}
		return Campaign{}, classifyStore(fmt.Errorf("latest drafted campaign: %w", err), err)
	}

	return campaign, nil
}

// ListDraftedCampaigns retrieves every campaign in content_drafted status.
func (r *Repo) ListDraftedCampaigns(ctx context.Context) ([]Campaign, error) {
	query := `
		SELECT id, name, objective, metadata, status, created_at, updated_at
		FROM mgp_campaigns
		WHERE status = $1
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, domain.CampaignStatusContentDrafted)
	if err != nil {
		return nil, classifyStore(fmt.Errorf("list drafted campaigns: %w", err), err)
	}
	defer rows.Close()

	var results []Campaign
	for rows.Next() {
		campaign, err := r.scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		results = append(results, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}

	return results, nil
}

// SetCampaignStatus updates the authoritative status column.
func (r *Repo) SetCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	query := `UPDATE mgp_campaigns SET status = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return classifyStore(fmt.Errorf("set campaign status: %w", err), err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMessage)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repo) scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var metadata []byte

	err := row.Scan(&c.ID, &c.Name, &c.Objective, &metadata, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Campaign{}, err
	}

	if len(metadata) > 0 {
		// Malformed metadata written by an external agent should not make the
		// whole campaign unreadable.
		_ = json.Unmarshal(metadata, &c.Metadata)
	}

	return c, nil
}

// classifyStore wraps a store failure into a typed error. Permission-denied
// becomes KindForbidden so the service layer can trigger its documented
// fallback; everything else becomes KindInternal so handlers answer 500
// without echoing driver errors to the client.
func classifyStore(wrapped, cause error) error {
	var pgErr *pgconn.PgError
	if errors.As(cause, &pgErr) && pgErr.Code == pgInsufficientPrivilege {
		return apperr.Wrap(apperr.KindForbidden, "campaign table access denied", wrapped)
	}
	return apperr.Wrap(apperr.KindInternal, "campaign store failure", wrapped)
}
