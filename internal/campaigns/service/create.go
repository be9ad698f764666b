package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/platform/apperr"
)

// CreateBroadcastInput carries the multipart form fields of a new campaign
// request. Image is optional.
type CreateBroadcastInput struct {
	Name             string
	Objective        string
	AdminNotes       string
	ImageFilename    string
	ImageContentType string
	ImageData        []byte
}

// CreateBroadcast hands a new campaign brief to the engine, which owns the
// campaign row from that point on. The uploaded image is stored locally and
// linked to the campaign id the engine returns, so draft review can show it
// before the engine pipeline completes.
func (s *Service) CreateBroadcast(ctx context.Context, input CreateBroadcastInput) (transport.CreateBroadcastResponse, error) {
	if strings.TrimSpace(input.Name) == "" {
		return transport.CreateBroadcastResponse{}, apperr.Validation("campaign name is required")
	}
	if !s.engine.Configured(engine.EndpointCreateCampaign) {
		return transport.CreateBroadcastResponse{}, apperr.Unavailable("create-campaign webhook is not configured")
	}

	fields := map[string]string{
		"campaign_name":      input.Name,
		"campaign_objective": input.Objective,
		"admin_notes":        input.AdminNotes,
	}

	result := s.engine.DispatchMultipart(ctx, engine.EndpointCreateCampaign, fields, input.ImageFilename, input.ImageData)
	if !result.OK {
		return transport.CreateBroadcastResponse{}, apperr.Wrap(apperr.KindInternal,
			"engine rejected the campaign request", fmt.Errorf("%s", result.Detail()))
	}

	// A new draft is on its way; clear superseded drafts now instead of
	// waiting for the periodic schedule.
	if s.cleanup != nil {
		s.log.CommandStep("create", "enqueue draft cleanup", s.cleanup.EnqueueDraftCleanup(ctx))
	}

	resp := parseCreateResponse(result.Body)
	if resp.CampaignID == "" {
		// The engine accepted but answered with an unexpected shape; the
		// campaign will surface through polling once the pipeline writes it.
		s.log.Warn("create broadcast: engine response missing campaign id")
		return resp, nil
	}

	s.storeCampaignImage(ctx, resp.CampaignID, input)

	return resp, nil
}

// TriggerSync asks the engine to refresh the audience pool.
func (s *Service) TriggerSync(ctx context.Context) error {
	if !s.engine.Configured(engine.EndpointTriggerSync) {
		return apperr.Unavailable("sync webhook is not configured")
	}

	result := s.engine.Dispatch(ctx, engine.EndpointTriggerSync, struct{}{})
	if !result.OK {
		return apperr.Wrap(apperr.KindInternal, "engine rejected the sync request", fmt.Errorf("%s", result.Detail()))
	}
	return nil
}

func (s *Service) storeCampaignImage(ctx context.Context, campaignID string, input CreateBroadcastInput) {
	if len(input.ImageData) == 0 || !s.imagesEnabled() {
		return
	}

	id, err := uuid.Parse(campaignID)
	if err != nil {
		s.log.Warn("create broadcast: unparseable campaign id from engine", "campaign_id", campaignID)
		return
	}

	filename := input.ImageFilename
	if filename == "" {
		filename = "image"
	}
	key := fmt.Sprintf("campaigns/%s/%s", id, path.Base(filename))

	if err := s.storage.Upload(ctx, key, input.ImageData, input.ImageContentType); err != nil {
		s.log.CommandStep("create", "store campaign image", err)
		return
	}

	err = s.repo.CreateAsset(ctx, repository.Asset{
		CampaignID: id,
		Type:       repository.AssetTypeImage,
		UsageType:  repository.AssetUsagePrimaryVisual,
		FileKey:    key,
	})
	s.log.CommandStep("create", "link campaign image", err)
}

func parseCreateResponse(body []byte) transport.CreateBroadcastResponse {
	var parsed struct {
		CampaignID  string `json:"campaign_id"`
		ExecutionID string `json:"execution_id"`
	}
	_ = json.Unmarshal(body, &parsed)

	return transport.CreateBroadcastResponse{
		CampaignID:  parsed.CampaignID,
		ExecutionID: parsed.ExecutionID,
	}
}
