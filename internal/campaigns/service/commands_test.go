package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/platform/apperr"
)

func draftedCampaign(repo *fakeRepo) uuid.UUID {
	id := uuid.New()
	repo.campaigns[id] = repository.Campaign{
		ID:        id,
		Name:      "Spring promo",
		Status:    domain.CampaignStatusContentDrafted,
		UpdatedAt: time.Now(),
	}
	return id
}

func linkAudience(repo *fakeRepo, campaignID uuid.UUID, content string) uuid.UUID {
	audienceID := uuid.New()
	repo.audiences[audienceID] = domain.Audience{
		ID:            audienceID,
		Name:          "Recipient",
		Phone:         "+6281234567890",
		WhatsAppOptIn: true,
	}
	repo.rows[campaignID] = append(repo.rows[campaignID], domain.AudienceRow{
		ID:         uuid.New(),
		CampaignID: campaignID,
		AudienceID: audienceID,
		Content:    content,
		UpdatedAt:  time.Now(),
	})
	return audienceID
}

func TestApproveSplitsSelectedAndUnselected(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	selected := linkAudience(repo, campaignID, "hello")
	unselected := linkAudience(repo, campaignID, "hello too")

	svc := newTestService(repo, &fakeDispatcher{})
	resp, err := svc.Approve(context.Background(), transport.ApproveRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{selected},
	})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !resp.Success || resp.ApprovedCount != 1 || resp.RejectedCount != 1 {
		t.Errorf("Approve() = %+v, want success with 1 approved / 1 rejected", resp)
	}

	if repo.campaigns[campaignID].Status != domain.CampaignStatusApproved {
		t.Errorf("campaign status = %q, want approved", repo.campaigns[campaignID].Status)
	}

	if len(repo.targetWrites) != 2 {
		t.Fatalf("target writes = %d, want 2", len(repo.targetWrites))
	}
	if repo.targetWrites[0].status != domain.DeliveryApproved || repo.targetWrites[0].audienceIDs[0] != selected {
		t.Errorf("first target write = %+v, want selected approved", repo.targetWrites[0])
	}
	if repo.targetWrites[1].status != domain.DeliveryRejected || repo.targetWrites[1].audienceIDs[0] != unselected {
		t.Errorf("second target write = %+v, want unselected rejected", repo.targetWrites[1])
	}

	if len(repo.auditRecords) != 1 || repo.auditRecords[0].AgentName != "broadcast_approve" {
		t.Errorf("audit records = %+v, want one broadcast_approve record", repo.auditRecords)
	}
}

func TestApproveCampaignStatusFailureAbortsEverything(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	linkAudience(repo, campaignID, "hello")
	repo.setStatusErr = apperr.Internal("write failed")

	svc := newTestService(repo, &fakeDispatcher{})
	_, err := svc.Approve(context.Background(), transport.ApproveRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{uuid.New()},
	})
	if err == nil {
		t.Fatal("Approve() error = nil, want failure")
	}
	if len(repo.targetWrites) != 0 || len(repo.auditRecords) != 0 {
		t.Errorf("secondary writes ran after authoritative failure: target=%d audit=%d",
			len(repo.targetWrites), len(repo.auditRecords))
	}
}

func TestApproveAuditFailureDoesNotFailCommand(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	selected := linkAudience(repo, campaignID, "hello")
	repo.appendErr = apperr.Internal("audit insert failed")

	svc := newTestService(repo, &fakeDispatcher{})
	resp, err := svc.Approve(context.Background(), transport.ApproveRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{selected},
	})
	if err != nil {
		t.Fatalf("Approve() error = %v, want nil", err)
	}
	if !resp.Success {
		t.Error("Approve() success = false, want true")
	}
}

func TestRejectSweepsAudienceRows(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	linkAudience(repo, campaignID, "hello")

	svc := newTestService(repo, &fakeDispatcher{})
	resp, err := svc.Reject(context.Background(), transport.RejectRequest{CampaignID: campaignID})
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if !resp.Success {
		t.Error("Reject() success = false")
	}
	if repo.campaigns[campaignID].Status != domain.CampaignStatusRejected {
		t.Errorf("campaign status = %q, want rejected", repo.campaigns[campaignID].Status)
	}
	if len(repo.rejectSweeps) != 1 || repo.rejectSweeps[0] != campaignID {
		t.Errorf("reject sweeps = %v, want [%s]", repo.rejectSweeps, campaignID)
	}
}

func TestSendRefusesUnapprovedCampaign(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	dispatcher := &fakeDispatcher{configured: map[engine.Endpoint]bool{engine.EndpointBroadcast: true}}

	svc := newTestService(repo, dispatcher)
	_, err := svc.Send(context.Background(), transport.SendRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{uuid.New()},
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("Send() error kind = %v, want conflict", apperr.GetKind(err))
	}
	if len(dispatcher.dispatches) != 0 {
		t.Error("webhook dispatched for unapproved campaign")
	}
	if len(repo.statusWrites) != 0 || len(repo.targetWrites) != 0 {
		t.Error("Send mutated the store before the approval gate")
	}
}

func TestSendRefusesWhenWebhookUnconfigured(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	campaign := repo.campaigns[campaignID]
	campaign.Status = domain.CampaignStatusApproved
	repo.campaigns[campaignID] = campaign

	svc := newTestService(repo, &fakeDispatcher{})
	_, err := svc.Send(context.Background(), transport.SendRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{uuid.New()},
	})
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("Send() error kind = %v, want unavailable", apperr.GetKind(err))
	}
	if len(repo.statusWrites) != 0 && repo.statusWrites[0].status == domain.CampaignStatusSent {
		t.Error("campaign marked sent without a configured webhook")
	}
}

func TestSendDispatchesAndMarksSent(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	campaign := repo.campaigns[campaignID]
	campaign.Status = domain.CampaignStatusApproved
	repo.campaigns[campaignID] = campaign
	audienceID := linkAudience(repo, campaignID, "personalized message")

	dispatcher := &fakeDispatcher{
		configured: map[engine.Endpoint]bool{engine.EndpointBroadcast: true},
		result:     engine.Result{OK: true, Status: 200},
	}

	svc := newTestService(repo, dispatcher)
	resp, err := svc.Send(context.Background(), transport.SendRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{audienceID},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.Success || resp.SentCount != 1 || resp.FailedCount != 0 {
		t.Errorf("Send() = %+v, want 1 sent", resp)
	}

	if len(dispatcher.dispatches) != 1 || dispatcher.dispatches[0] != engine.EndpointBroadcast {
		t.Errorf("dispatches = %v, want one broadcast", dispatcher.dispatches)
	}
	payload, ok := dispatcher.payloads[0].(broadcastPayload)
	if !ok {
		t.Fatalf("dispatched payload type = %T, want broadcastPayload", dispatcher.payloads[0])
	}
	if payload.TriggeredAt.IsZero() {
		t.Error("dispatched payload has no trigger timestamp")
	}
	if repo.campaigns[campaignID].Status != domain.CampaignStatusSent {
		t.Errorf("campaign status = %q, want sent", repo.campaigns[campaignID].Status)
	}
	if len(repo.targetWrites) != 1 || repo.targetWrites[0].status != domain.DeliverySent {
		t.Errorf("target writes = %+v, want one sent write", repo.targetWrites)
	}
	if len(repo.auditRecords) != 1 || repo.auditRecords[0].AgentName != "broadcast_send" {
		t.Errorf("audit records = %+v, want one broadcast_send record", repo.auditRecords)
	}
}

func TestSendReportsPerRecipientFailures(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	campaign := repo.campaigns[campaignID]
	campaign.Status = domain.CampaignStatusApproved
	repo.campaigns[campaignID] = campaign

	sendable := linkAudience(repo, campaignID, "personalized message")
	noContent := linkAudience(repo, campaignID, "")

	dispatcher := &fakeDispatcher{
		configured: map[engine.Endpoint]bool{engine.EndpointBroadcast: true},
		result:     engine.Result{OK: true, Status: 200},
	}

	svc := newTestService(repo, dispatcher)
	resp, err := svc.Send(context.Background(), transport.SendRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{sendable, noContent},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.SentCount != 1 || resp.FailedCount != 1 {
		t.Errorf("Send() counts = %d sent / %d failed, want 1/1", resp.SentCount, resp.FailedCount)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	for _, result := range resp.Results {
		if result.AudienceID == noContent && result.Success {
			t.Error("recipient without content reported as success")
		}
	}
}

func TestSendEngineRejectionSurfacesError(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	campaign := repo.campaigns[campaignID]
	campaign.Status = domain.CampaignStatusApproved
	repo.campaigns[campaignID] = campaign
	audienceID := linkAudience(repo, campaignID, "personalized message")

	dispatcher := &fakeDispatcher{
		configured: map[engine.Endpoint]bool{engine.EndpointBroadcast: true},
		result:     engine.Result{OK: false, Status: 500, Body: []byte("workflow crashed")},
	}

	svc := newTestService(repo, dispatcher)
	resp, err := svc.Send(context.Background(), transport.SendRequest{
		CampaignID:  campaignID,
		AudienceIDs: []uuid.UUID{audienceID},
	})
	if err == nil {
		t.Fatal("Send() error = nil, want engine rejection")
	}
	if resp.Success {
		t.Error("Send() success = true on engine rejection")
	}
	if repo.campaigns[campaignID].Status == domain.CampaignStatusSent {
		t.Error("campaign marked sent after engine rejection")
	}
	// The attempt is still recorded in the audit log.
	if len(repo.auditRecords) != 1 {
		t.Errorf("audit records = %d, want 1", len(repo.auditRecords))
	}
}

func TestUpdateContentRequiresSomethingToUpdate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeDispatcher{})

	_, err := svc.UpdateContent(context.Background(), transport.UpdateContentRequest{
		CampaignID: uuid.New(),
		AudienceID: uuid.New(),
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("UpdateContent() error kind = %v, want validation", apperr.GetKind(err))
	}
	if repo.contentWrites != 0 {
		t.Error("empty update reached the store")
	}
}

func TestUpdateContentMissingRowIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	repo.updateContentRows = 0
	content := "new message"

	svc := newTestService(repo, &fakeDispatcher{})
	_, err := svc.UpdateContent(context.Background(), transport.UpdateContentRequest{
		CampaignID:       uuid.New(),
		AudienceID:       uuid.New(),
		BroadcastContent: &content,
	})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("UpdateContent() error kind = %v, want not found", apperr.GetKind(err))
	}
}

func TestUpdateContentSucceeds(t *testing.T) {
	repo := newFakeRepo()
	repo.updateContentRows = 2
	campaignID := draftedCampaign(repo)
	audienceID := linkAudience(repo, campaignID, "new message")
	content := "new message"

	svc := newTestService(repo, &fakeDispatcher{})
	resp, err := svc.UpdateContent(context.Background(), transport.UpdateContentRequest{
		CampaignID:       campaignID,
		AudienceID:       audienceID,
		BroadcastContent: &content,
	})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if !resp.Success {
		t.Error("UpdateContent() success = false")
	}
	if repo.contentWrites != 1 {
		t.Errorf("content writes = %d, want 1", repo.contentWrites)
	}
}

func TestCleanupKeepsNewestDraft(t *testing.T) {
	repo := newFakeRepo()

	now := time.Now()
	newest := uuid.New()
	stale1 := uuid.New()
	stale2 := uuid.New()
	repo.campaigns[newest] = repository.Campaign{ID: newest, Status: domain.CampaignStatusContentDrafted, UpdatedAt: now}
	repo.campaigns[stale1] = repository.Campaign{ID: stale1, Status: domain.CampaignStatusContentDrafted, UpdatedAt: now.Add(-time.Hour)}
	repo.campaigns[stale2] = repository.Campaign{ID: stale2, Status: domain.CampaignStatusContentDrafted, UpdatedAt: now.Add(-2 * time.Hour)}

	svc := newTestService(repo, &fakeDispatcher{})
	resp, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if resp.ForceRejected != 2 {
		t.Errorf("ForceRejected = %d, want 2", resp.ForceRejected)
	}

	if repo.campaigns[newest].Status != domain.CampaignStatusContentDrafted {
		t.Error("newest draft was rejected")
	}
	if repo.campaigns[stale1].Status != domain.CampaignStatusRejected || repo.campaigns[stale2].Status != domain.CampaignStatusRejected {
		t.Error("stale drafts were not rejected")
	}
	if len(repo.auditRecords) != 2 {
		t.Errorf("audit records = %d, want 2", len(repo.auditRecords))
	}
	for _, record := range repo.auditRecords {
		if record.AgentName != "draft_cleanup" {
			t.Errorf("audit agent = %q, want draft_cleanup", record.AgentName)
		}
	}
}

func TestCleanupSingleDraftIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	draftedCampaign(repo)

	svc := newTestService(repo, &fakeDispatcher{})
	resp, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if resp.ForceRejected != 0 {
		t.Errorf("ForceRejected = %d, want 0", resp.ForceRejected)
	}
	if len(repo.statusWrites) != 0 {
		t.Error("single draft was touched")
	}
}
