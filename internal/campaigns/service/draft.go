package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/platform/apperr"
	"metagapura_portal_backend/platform/phone"
)

// AssembleDraft builds the operator-reviewable view of the campaign
// currently awaiting review. It returns (nil, nil) when no campaign is
// drafted; the handler renders that as a 200 with a null draft.
//
// Assembly tolerates partial permission failures: a denied sub-query is
// replaced by its fallback (or skipped) and recorded as a warning on the
// payload rather than failing the whole read.
func (s *Service) AssembleDraft(ctx context.Context) (*transport.DraftPayload, error) {
	campaign, err := s.repo.LatestDraftedCampaign(ctx)
	if err != nil {
		switch apperr.GetKind(err) {
		case apperr.KindNotFound:
			return nil, nil
		case apperr.KindForbidden:
			return s.assembleFromAudit(ctx)
		default:
			return nil, err
		}
	}

	return s.assemble(ctx, campaign, nil)
}

// AssembleDraftFor builds the reviewable view of a specific campaign.
// Used after the operator followed a direct link. A campaign that is no
// longer awaiting review (approved, rejected, sent) yields (nil, nil), the
// same null draft the unscoped read reports when nothing is pending.
func (s *Service) AssembleDraftFor(ctx context.Context, campaignID uuid.UUID) (*transport.DraftPayload, error) {
	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindForbidden {
			if s.stateFromAudit(ctx, campaignID) != domain.StateDrafted {
				return nil, nil
			}
			return s.assembleDegraded(ctx, campaignID, []string{"campaign record unavailable: permission denied"})
		}
		return nil, err
	}

	if campaign.Status != domain.CampaignStatusContentDrafted {
		return nil, nil
	}

	return s.assemble(ctx, campaign, nil)
}

func (s *Service) assembleFromAudit(ctx context.Context) (*transport.DraftPayload, error) {
	id, err := s.draftFromAudit(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, nil
	}
	return s.assembleDegraded(ctx, *id, []string{"campaign record unavailable: permission denied"})
}

// assembleDegraded builds a payload without the campaign row, pulling
// display fields from audit record metadata instead.
func (s *Service) assembleDegraded(ctx context.Context, campaignID uuid.UUID, warnings []string) (*transport.DraftPayload, error) {
	campaign := repository.Campaign{ID: campaignID}
	return s.assemble(ctx, campaign, warnings)
}

func (s *Service) assemble(ctx context.Context, campaign repository.Campaign, warnings []string) (*transport.DraftPayload, error) {
	payload := &transport.DraftPayload{
		CampaignID: campaign.ID,
		Warnings:   warnings,
	}

	s.fillDisplayFields(ctx, campaign, payload)

	rows, err := s.repo.AudienceRows(ctx, campaign.ID)
	if err != nil {
		if apperr.GetKind(err) != apperr.KindForbidden {
			return nil, err
		}
		payload.Warnings = append(payload.Warnings, "recipient rows unavailable: permission denied")
	}

	rows = domain.DedupeByAudience(rows)
	payload.Recipients = s.buildRecipients(ctx, rows, payload)

	if campaign.Metadata.MatchmakerResult != nil && campaign.Metadata.MatchmakerResult.TotalMatched > 0 {
		payload.TotalMatched = campaign.Metadata.MatchmakerResult.TotalMatched
	} else {
		payload.TotalMatched = len(payload.Recipients)
	}

	payload.ImageURL = s.resolveImageURL(ctx, campaign.ID)

	return payload, nil
}

// fillDisplayFields resolves name/objective/tags/notes through the fallback
// chain: structured columns, then campaign metadata, then audit metadata.
func (s *Service) fillDisplayFields(ctx context.Context, campaign repository.Campaign, payload *transport.DraftPayload) {
	payload.Name = strings.TrimSpace(campaign.Name)
	payload.Objective = strings.TrimSpace(campaign.Objective)
	payload.OriginNotes = campaign.Metadata.AdminNotes
	payload.Tags = campaign.Metadata.StrategyTags

	if brief := campaignBrief(campaign); brief != nil {
		if payload.Name == "" {
			payload.Name = strings.TrimSpace(brief.Title)
		}
		if payload.Objective == "" {
			payload.Objective = strings.TrimSpace(brief.Objective)
		}
		if len(payload.Tags) == 0 {
			payload.Tags = brief.Tags
		}
	}

	if payload.Name != "" && payload.Objective != "" {
		return
	}

	updates, err := s.repo.StatusUpdates(ctx, campaign.ID, statusUpdateScanLimit)
	if err != nil {
		s.log.DatabaseError("draft display fallback", err)
		return
	}
	for _, update := range updates {
		if payload.Name == "" {
			payload.Name = metadataString(update.Metadata, "campaign_name")
		}
		if payload.Objective == "" {
			payload.Objective = metadataString(update.Metadata, "campaign_objective")
		}
		if payload.Name != "" && payload.Objective != "" {
			return
		}
	}
}

func (s *Service) buildRecipients(ctx context.Context, rows []domain.AudienceRow, payload *transport.DraftPayload) []transport.DraftRecipient {
	recipients := make([]transport.DraftRecipient, 0, len(rows))
	if len(rows) == 0 {
		return recipients
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AudienceID)
	}

	audiences := make(map[uuid.UUID]domain.Audience, len(ids))
	fetched, err := s.repo.GetAudiences(ctx, ids)
	if err != nil {
		// Recipient rows still render without contact data.
		payload.Warnings = append(payload.Warnings, "audience records unavailable")
		s.log.DatabaseError("draft audiences", err)
	}
	for _, audience := range fetched {
		audiences[audience.ID] = audience
	}

	for _, row := range rows {
		recipient := transport.DraftRecipient{
			AudienceID:          row.AudienceID,
			Content:             row.Content,
			CharacterCount:      utf8.RuneCountInString(row.Content),
			GuardrailsTag:       domain.NormalizeGuardrailTag(row.Metadata.GuardrailsTag),
			GuardrailViolations: row.Metadata.GuardrailViolations,
			MatchReason:         row.Metadata.MatchReason,
			TargetStatus:        string(row.TargetStatus),
			ScheduledAt:         row.ScheduledAt,
		}

		if audience, ok := audiences[row.AudienceID]; ok {
			recipient.Name = audience.Name
			channel := domain.SelectChannel(audience)
			recipient.Channel = string(channel)
			recipient.SendTo = contactFor(channel, audience)
		}

		recipients = append(recipients, recipient)
	}

	return recipients
}

func (s *Service) resolveImageURL(ctx context.Context, campaignID uuid.UUID) string {
	if !s.imagesEnabled() {
		return ""
	}

	asset, err := s.repo.CampaignImage(ctx, campaignID)
	if err != nil {
		if apperr.GetKind(err) != apperr.KindNotFound {
			s.log.DatabaseError("campaign image", err)
		}
		return ""
	}

	url, err := s.storage.PresignedURL(ctx, asset.FileKey)
	if err != nil {
		s.log.Warn("presign campaign image failed", "file_key", asset.FileKey, "error", err.Error())
		return ""
	}
	return url
}

func contactFor(channel domain.Channel, audience domain.Audience) string {
	if channel == domain.ChannelTelegram {
		return phone.NormalizeHandle(audience.TelegramHandle)
	}
	return phone.NormalizeE164(audience.Phone)
}

func campaignBrief(campaign repository.Campaign) *repository.CampaignBrief {
	if campaign.Metadata.ResearchPayload == nil {
		return nil
	}
	return campaign.Metadata.ResearchPayload.CampaignBrief
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if value, ok := metadata[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
