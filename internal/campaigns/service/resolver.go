package service

import (
	"context"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/platform/apperr"
)

// ResolveState derives the logical lifecycle state for one campaign.
//
// The campaign row status is authoritative. When the campaign table is not
// readable for permission reasons the resolver degrades to scanning the
// audit log, and when the store is unreachable entirely it reports idle:
// a wrong-but-calm answer beats an error page on a polling endpoint. The
// resolver never mutates anything and is safe to call at any frequency.
func (s *Service) ResolveState(ctx context.Context, campaignID uuid.UUID) domain.State {
	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err == nil {
		if state, ok := domain.StateFromCampaignStatus(campaign.Status); ok {
			return state
		}
		// Status column carries no lifecycle meaning (engine mid-write);
		// fall through to the audit log.
		return s.stateFromAudit(ctx, campaignID)
	}

	switch apperr.GetKind(err) {
	case apperr.KindForbidden:
		return s.stateFromAudit(ctx, campaignID)
	case apperr.KindNotFound:
		return domain.StateIdle
	default:
		s.log.DatabaseError("resolve state", err)
		return domain.StateIdle
	}
}

func (s *Service) stateFromAudit(ctx context.Context, campaignID uuid.UUID) domain.State {
	updates, err := s.repo.StatusUpdates(ctx, campaignID, statusUpdateScanLimit)
	if err != nil {
		s.log.DatabaseError("resolve state from audit", err)
		return domain.StateIdle
	}
	return domain.StateFromUpdates(updates)
}

// CurrentDraft locates the campaign currently awaiting review. It returns
// nil when no campaign is drafted. Like ResolveState it degrades to the
// audit log on permission-denied reads.
func (s *Service) CurrentDraft(ctx context.Context) (*uuid.UUID, error) {
	campaign, err := s.repo.LatestDraftedCampaign(ctx)
	if err == nil {
		id := campaign.ID
		return &id, nil
	}

	switch apperr.GetKind(err) {
	case apperr.KindNotFound:
		return nil, nil
	case apperr.KindForbidden:
		return s.draftFromAudit(ctx)
	default:
		return nil, err
	}
}

// draftFromAudit finds the newest campaign whose audit trail resolves to
// drafted. Campaigns already advanced past review are skipped.
func (s *Service) draftFromAudit(ctx context.Context) (*uuid.UUID, error) {
	updates, err := s.repo.RecentStatusUpdates(ctx, statusUpdateScanLimit)
	if err != nil {
		return nil, err
	}

	byCampaign := make(map[uuid.UUID][]domain.StatusUpdate)
	order := make([]uuid.UUID, 0, len(updates))
	for _, update := range updates {
		if _, seen := byCampaign[update.CampaignID]; !seen {
			order = append(order, update.CampaignID)
		}
		byCampaign[update.CampaignID] = append(byCampaign[update.CampaignID], update)
	}

	for _, id := range order {
		if domain.StateFromUpdates(byCampaign[id]) == domain.StateDrafted {
			campaignID := id
			return &campaignID, nil
		}
	}

	return nil, nil
}
