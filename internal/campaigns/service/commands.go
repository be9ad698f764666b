package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/internal/events"
	"metagapura_portal_backend/platform/apperr"
)

// Approve marks the selected recipients approved and every other linked
// recipient rejected, then advances the campaign to approved.
//
// The campaign status write is the authoritative step: if it fails the
// command fails and nothing else runs. Per-recipient status writes and the
// audit record are secondary; their failures are logged but do not undo the
// approval.
func (s *Service) Approve(ctx context.Context, req transport.ApproveRequest) (transport.ApproveResponse, error) {
	if err := s.repo.SetCampaignStatus(ctx, req.CampaignID, domain.CampaignStatusApproved); err != nil {
		return transport.ApproveResponse{}, err
	}

	selected := make(map[uuid.UUID]struct{}, len(req.AudienceIDs))
	for _, id := range req.AudienceIDs {
		selected[id] = struct{}{}
	}

	var rejected []uuid.UUID
	linked, err := s.repo.LinkedAudienceIDs(ctx, req.CampaignID)
	if err != nil {
		s.log.CommandStep("approve", "list linked audiences", err)
	} else {
		for _, id := range linked {
			if _, ok := selected[id]; !ok {
				rejected = append(rejected, id)
			}
		}
	}

	resp := transport.ApproveResponse{Success: true}

	approvedCount, err := s.repo.SetTargetStatus(ctx, req.CampaignID, req.AudienceIDs, domain.DeliveryApproved)
	s.log.CommandStep("approve", "mark selected approved", err)
	resp.ApprovedCount = int(approvedCount)

	if len(rejected) > 0 {
		rejectedCount, err := s.repo.SetTargetStatus(ctx, req.CampaignID, rejected, domain.DeliveryRejected)
		s.log.CommandStep("approve", "mark unselected rejected", err)
		resp.RejectedCount = int(rejectedCount)
	}

	s.audit(ctx, "approve", repository.AuditRecord{
		CampaignID: req.CampaignID,
		AgentName:  agentApprove,
		Status:     "completed",
		Message:    fmt.Sprintf("Broadcast approved: %d recipients selected, %d rejected", resp.ApprovedCount, resp.RejectedCount),
		Progress:   100,
		Metadata: map[string]interface{}{
			"approved_count": resp.ApprovedCount,
			"rejected_count": resp.RejectedCount,
		},
	})

	s.publishState(ctx, req.CampaignID, domain.StateApproved)

	return resp, nil
}

// Reject marks the whole campaign rejected. Same asymmetry as Approve: the
// campaign status write decides the outcome, the per-recipient sweep and the
// audit record are best-effort.
func (s *Service) Reject(ctx context.Context, req transport.RejectRequest) (transport.RejectResponse, error) {
	if err := s.repo.SetCampaignStatus(ctx, req.CampaignID, domain.CampaignStatusRejected); err != nil {
		return transport.RejectResponse{}, err
	}

	_, err := s.repo.RejectAllAudienceRows(ctx, req.CampaignID, "rejected by operator")
	s.log.CommandStep("reject", "reject audience rows", err)

	s.audit(ctx, "reject", repository.AuditRecord{
		CampaignID: req.CampaignID,
		AgentName:  agentReject,
		Status:     "completed",
		Message:    "Broadcast rejected by operator",
		Progress:   100,
	})

	s.publishState(ctx, req.CampaignID, domain.StateRejected)

	return transport.RejectResponse{Success: true}, nil
}

// Send triggers the broadcast for the selected recipients of an approved
// campaign. A campaign that has not been approved is refused with a
// conflict; an unconfigured broadcast webhook is a configuration error, not
// a silent no-op.
//
// The engine owns actual delivery. Send assembles the per-recipient
// payloads, dispatches the broadcast webhook once, records the attempt in
// the audit log whatever the engine answered, and reports per-recipient
// assembly results to the caller.
func (s *Service) Send(ctx context.Context, req transport.SendRequest) (transport.SendResponse, error) {
	campaign, err := s.repo.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return transport.SendResponse{}, err
	}
	if campaign.Status != domain.CampaignStatusApproved {
		return transport.SendResponse{}, apperr.Conflict(
			fmt.Sprintf("campaign is %s, only approved campaigns can be sent", campaign.Status))
	}

	if !s.engine.Configured(engine.EndpointBroadcast) {
		return transport.SendResponse{}, apperr.Unavailable("broadcast webhook is not configured")
	}

	imageURL := s.resolveImageURL(ctx, req.CampaignID)

	recipients, results := s.collectSendTargets(ctx, req.CampaignID, req.AudienceIDs)

	resp := transport.SendResponse{Results: results}
	for _, result := range results {
		if result.Success {
			resp.SentCount++
		} else {
			resp.FailedCount++
		}
	}

	if len(recipients) == 0 {
		return resp, apperr.Validation("no sendable recipients in selection")
	}

	dispatch := s.engine.Dispatch(ctx, engine.EndpointBroadcast, broadcastPayload{
		CampaignID:  req.CampaignID,
		ImageURL:    imageURL,
		Recipients:  recipients,
		TriggeredAt: time.Now().UTC(),
	})

	s.audit(ctx, "send", repository.AuditRecord{
		CampaignID: req.CampaignID,
		AgentName:  agentSend,
		Status:     "completed",
		Message:    fmt.Sprintf("Broadcast send triggered for %d recipients", len(recipients)),
		Progress:   100,
		Metadata: map[string]interface{}{
			"recipient_count":  len(recipients),
			"webhook_accepted": dispatch.OK,
			"webhook_detail":   dispatch.Detail(),
		},
	})

	if dispatch.OK {
		sentIDs := make([]uuid.UUID, 0, len(recipients))
		for _, recipient := range recipients {
			sentIDs = append(sentIDs, recipient.AudienceID)
		}
		_, err := s.repo.SetTargetStatus(ctx, req.CampaignID, sentIDs, domain.DeliverySent)
		s.log.CommandStep("send", "mark recipients sent", err)

		err = s.repo.SetCampaignStatus(ctx, req.CampaignID, domain.CampaignStatusSent)
		s.log.CommandStep("send", "mark campaign sent", err)
	}

	s.bus.Publish(ctx, events.BroadcastTriggered{
		BaseEvent:      events.NewBaseEvent(),
		CampaignID:     req.CampaignID,
		RecipientCount: len(recipients),
		Accepted:       dispatch.OK,
	})

	resp.Success = dispatch.OK
	if !dispatch.OK {
		return resp, apperr.Wrap(apperr.KindInternal, "engine rejected the broadcast", fmt.Errorf("%s", dispatch.Detail()))
	}

	return resp, nil
}

type broadcastPayload struct {
	CampaignID  uuid.UUID            `json:"campaign_id"`
	ImageURL    string               `json:"image_url,omitempty"`
	Recipients  []broadcastRecipient `json:"recipients"`
	TriggeredAt time.Time            `json:"triggered_at"`
}

type broadcastRecipient struct {
	AudienceID uuid.UUID `json:"audience_id"`
	Channel    string    `json:"channel"`
	SendTo     string    `json:"send_to"`
	Content    string    `json:"content"`
}

// collectSendTargets resolves content and contact data for each selected
// audience in parallel. Lookup failures become per-recipient failures, not
// a command failure.
func (s *Service) collectSendTargets(ctx context.Context, campaignID uuid.UUID, audienceIDs []uuid.UUID) ([]broadcastRecipient, []transport.SendResult) {
	audiences := make(map[uuid.UUID]domain.Audience, len(audienceIDs))
	fetched, err := s.repo.GetAudiences(ctx, audienceIDs)
	if err != nil {
		s.log.CommandStep("send", "fetch audiences", err)
	}
	for _, audience := range fetched {
		audiences[audience.ID] = audience
	}

	type target struct {
		index     int
		recipient broadcastRecipient
		err       error
	}

	targets := make([]target, len(audienceIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(8)

	for i, audienceID := range audienceIDs {
		group.Go(func() error {
			targets[i] = target{index: i}

			rows, err := s.repo.AudienceRowsFor(groupCtx, campaignID, audienceID)
			if err != nil {
				targets[i].err = err
				return nil
			}
			rows = domain.DedupeByAudience(rows)
			if len(rows) == 0 || rows[0].Content == "" {
				targets[i].err = fmt.Errorf("no generated content")
				return nil
			}

			audience, ok := audiences[audienceID]
			if !ok {
				targets[i].err = fmt.Errorf("audience record not found")
				return nil
			}

			channel := domain.SelectChannel(audience)
			sendTo := contactFor(channel, audience)
			if sendTo == "" {
				targets[i].err = fmt.Errorf("no %s contact on record", channel)
				return nil
			}

			targets[i].recipient = broadcastRecipient{
				AudienceID: audienceID,
				Channel:    string(channel),
				SendTo:     sendTo,
				Content:    rows[0].Content,
			}
			return nil
		})
	}
	// Worker funcs always return nil; the group is used for its limit and
	// context plumbing only.
	_ = group.Wait()

	recipients := make([]broadcastRecipient, 0, len(audienceIDs))
	results := make([]transport.SendResult, 0, len(audienceIDs))
	for i, audienceID := range audienceIDs {
		result := transport.SendResult{AudienceID: audienceID}
		if targets[i].err != nil {
			result.Error = targets[i].err.Error()
		} else {
			result.Success = true
			recipients = append(recipients, targets[i].recipient)
		}
		results = append(results, result)
	}

	return recipients, results
}

// UpdateContent edits one recipient's message and/or schedule. Every row
// matching the (campaign, audience) pair is updated so no stale duplicate
// can resurface on a later read.
func (s *Service) UpdateContent(ctx context.Context, req transport.UpdateContentRequest) (transport.UpdateContentResponse, error) {
	if req.BroadcastContent == nil && req.ScheduledAt == nil {
		return transport.UpdateContentResponse{}, apperr.Validation("nothing to update")
	}

	affected, err := s.repo.UpdateAudienceContent(ctx, req.CampaignID, req.AudienceID, req.BroadcastContent, req.ScheduledAt)
	if err != nil {
		return transport.UpdateContentResponse{}, err
	}
	if affected == 0 {
		return transport.UpdateContentResponse{}, apperr.NotFound("recipient row not found")
	}

	// Read-back verification: the engine may race this write. A mismatch is
	// logged for the operator to retry, not surfaced as a failure.
	if req.BroadcastContent != nil {
		rows, err := s.repo.AudienceRowsFor(ctx, req.CampaignID, req.AudienceID)
		if err == nil {
			rows = domain.DedupeByAudience(rows)
			if len(rows) > 0 && rows[0].Content != *req.BroadcastContent {
				s.log.Warn("content update verification mismatch",
					"campaign_id", req.CampaignID.String(),
					"audience_id", req.AudienceID.String(),
				)
			}
		}
	}

	return transport.UpdateContentResponse{Success: true}, nil
}

// Cleanup enforces the single-active-draft invariant: the most recently
// updated drafted campaign survives, every older one is force-rejected with
// an audit record naming the cleanup as the actor.
func (s *Service) Cleanup(ctx context.Context) (transport.CleanupResponse, error) {
	drafted, err := s.repo.ListDraftedCampaigns(ctx)
	if err != nil {
		return transport.CleanupResponse{}, err
	}
	if len(drafted) <= 1 {
		return transport.CleanupResponse{Success: true}, nil
	}

	var kept *uuid.UUID
	keptID := drafted[0].ID
	kept = &keptID

	resp := transport.CleanupResponse{Success: true}
	for _, stale := range drafted[1:] {
		if err := s.repo.SetCampaignStatus(ctx, stale.ID, domain.CampaignStatusRejected); err != nil {
			s.log.CommandStep("cleanup", "reject stale draft", err)
			continue
		}

		_, err := s.repo.RejectAllAudienceRows(ctx, stale.ID, "superseded by a newer draft")
		s.log.CommandStep("cleanup", "reject stale audience rows", err)

		s.audit(ctx, "cleanup", repository.AuditRecord{
			CampaignID: stale.ID,
			AgentName:  agentCleanup,
			Status:     "completed",
			Message:    "Draft force-rejected: superseded by a newer draft",
			Progress:   100,
		})

		s.publishState(ctx, stale.ID, domain.StateRejected)
		resp.ForceRejected++
	}

	s.bus.Publish(ctx, events.DraftsCleaned{
		BaseEvent:      events.NewBaseEvent(),
		KeptCampaignID: kept,
		ForceRejected:  resp.ForceRejected,
	})

	return resp, nil
}

// audit appends a lifecycle audit record; failures are logged, never fatal.
func (s *Service) audit(ctx context.Context, command string, record repository.AuditRecord) {
	err := s.repo.AppendStatusUpdate(ctx, record)
	s.log.CommandStep(command, "append audit record", err)
}

func (s *Service) publishState(ctx context.Context, campaignID uuid.UUID, state domain.State) {
	s.bus.Publish(ctx, events.CampaignStateChanged{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaignID,
		State:      string(state),
	})
}
