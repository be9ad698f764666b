package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/platform/apperr"
)

func TestAssembleDraftNoDraftedCampaign(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeDispatcher{})

	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if payload != nil {
		t.Errorf("AssembleDraft() = %+v, want nil", payload)
	}
}

func TestAssembleDraftDedupesRecipients(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)

	audienceID := uuid.New()
	repo.audiences[audienceID] = domain.Audience{
		ID:            audienceID,
		Name:          "Dewi",
		Phone:         "+6281234567890",
		WhatsAppOptIn: true,
	}
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	repo.rows[campaignID] = []domain.AudienceRow{
		{ID: uuid.New(), CampaignID: campaignID, AudienceID: audienceID, Content: "stale copy", UpdatedAt: older},
		{ID: uuid.New(), CampaignID: campaignID, AudienceID: audienceID, Content: "fresh copy", UpdatedAt: newer},
	}

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if payload == nil {
		t.Fatal("AssembleDraft() = nil, want payload")
	}
	if len(payload.Recipients) != 1 {
		t.Fatalf("recipients = %d, want 1 after dedup", len(payload.Recipients))
	}
	if payload.Recipients[0].Content != "fresh copy" {
		t.Errorf("content = %q, want the most recently updated row", payload.Recipients[0].Content)
	}
	if payload.Recipients[0].Name != "Dewi" {
		t.Errorf("name = %q, want audience name", payload.Recipients[0].Name)
	}
	if payload.Recipients[0].Channel != "whatsapp" {
		t.Errorf("channel = %q, want whatsapp", payload.Recipients[0].Channel)
	}
	if payload.TotalMatched != 1 {
		t.Errorf("TotalMatched = %d, want recipient count fallback", payload.TotalMatched)
	}
}

func TestAssembleDraftCharacterCountIsRunes(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)

	audienceID := uuid.New()
	repo.audiences[audienceID] = domain.Audience{ID: audienceID, Name: "R", WhatsAppOptIn: true}
	repo.rows[campaignID] = []domain.AudienceRow{
		{ID: uuid.New(), CampaignID: campaignID, AudienceID: audienceID, Content: "héllo", UpdatedAt: time.Now()},
	}

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if got := payload.Recipients[0].CharacterCount; got != 5 {
		t.Errorf("CharacterCount = %d, want 5 runes", got)
	}
}

func TestAssembleDraftNormalizesGuardrailTags(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)

	tagged := uuid.New()
	untagged := uuid.New()
	repo.audiences[tagged] = domain.Audience{ID: tagged, WhatsAppOptIn: true}
	repo.audiences[untagged] = domain.Audience{ID: untagged, WhatsAppOptIn: true}
	repo.rows[campaignID] = []domain.AudienceRow{
		{
			ID: uuid.New(), CampaignID: campaignID, AudienceID: tagged,
			Content: "a", UpdatedAt: time.Now(),
			Metadata: domain.AudienceRowMeta{GuardrailsTag: "approved"},
		},
		{
			ID: uuid.New(), CampaignID: campaignID, AudienceID: untagged,
			Content: "b", UpdatedAt: time.Now(),
		},
	}

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}

	byContent := make(map[string]string, len(payload.Recipients))
	for _, recipient := range payload.Recipients {
		byContent[recipient.Content] = recipient.GuardrailsTag
	}
	if byContent["a"] != domain.GuardrailPassed {
		t.Errorf(`tag for "approved" = %q, want passed`, byContent["a"])
	}
	if byContent["b"] != domain.GuardrailNeedsReview {
		t.Errorf("tag for untagged = %q, want needs_review", byContent["b"])
	}
}

func TestAssembleDraftFallsBackToMetadataBrief(t *testing.T) {
	repo := newFakeRepo()
	campaignID := uuid.New()
	repo.campaigns[campaignID] = repository.Campaign{
		ID:     campaignID,
		Status: domain.CampaignStatusContentDrafted,
		Metadata: repository.CampaignMeta{
			ResearchPayload: &repository.ResearchPayload{
				CampaignBrief: &repository.CampaignBrief{
					Title:     "Ramadan greetings",
					Objective: "Seasonal goodwill",
					Tags:      []string{"seasonal"},
				},
			},
		},
		UpdatedAt: time.Now(),
	}

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if payload.Name != "Ramadan greetings" || payload.Objective != "Seasonal goodwill" {
		t.Errorf("display fields = %q / %q, want brief fallback", payload.Name, payload.Objective)
	}
	if len(payload.Tags) != 1 || payload.Tags[0] != "seasonal" {
		t.Errorf("tags = %v, want brief tags", payload.Tags)
	}
}

func TestAssembleDraftFallsBackToAuditMetadata(t *testing.T) {
	repo := newFakeRepo()
	campaignID := uuid.New()
	repo.campaigns[campaignID] = repository.Campaign{
		ID:        campaignID,
		Status:    domain.CampaignStatusContentDrafted,
		UpdatedAt: time.Now(),
	}
	repo.updates[campaignID] = []domain.StatusUpdate{
		{
			CampaignID: campaignID,
			Message:    "Content drafted",
			Metadata: map[string]interface{}{
				"campaign_name":      "From audit",
				"campaign_objective": "Audit objective",
			},
			UpdatedAt: time.Now(),
		},
	}

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if payload.Name != "From audit" || payload.Objective != "Audit objective" {
		t.Errorf("display fields = %q / %q, want audit metadata fallback", payload.Name, payload.Objective)
	}
}

func TestAssembleDraftPermissionDegradedCarriesWarning(t *testing.T) {
	repo := newFakeRepo()
	repo.latestDraftedErr = apperr.New(apperr.KindForbidden, "permission denied")

	campaignID := uuid.New()
	repo.updates[campaignID] = []domain.StatusUpdate{
		{CampaignID: campaignID, Message: "Content drafted for review", UpdatedAt: time.Now()},
	}

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if payload == nil {
		t.Fatal("AssembleDraft() = nil, want degraded payload")
	}
	if payload.CampaignID != campaignID {
		t.Errorf("CampaignID = %s, want %s", payload.CampaignID, campaignID)
	}
	if len(payload.Warnings) == 0 {
		t.Error("degraded payload carries no warnings")
	}
}

func TestAssembleDraftDeniedRecipientRowsDegrade(t *testing.T) {
	repo := newFakeRepo()
	draftedCampaign(repo)
	repo.audienceRowsErr = apperr.New(apperr.KindForbidden, "permission denied")

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if len(payload.Recipients) != 0 {
		t.Errorf("recipients = %d, want 0", len(payload.Recipients))
	}
	if len(payload.Warnings) == 0 {
		t.Error("denied recipient rows produced no warning")
	}
}

func TestAssembleDraftForDraftedCampaign(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	linkAudience(repo, campaignID, "hello")

	svc := newTestService(repo, &fakeDispatcher{})
	payload, err := svc.AssembleDraftFor(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("AssembleDraftFor() error = %v", err)
	}
	if payload == nil {
		t.Fatal("AssembleDraftFor() = nil, want payload for drafted campaign")
	}
	if payload.CampaignID != campaignID {
		t.Errorf("CampaignID = %s, want %s", payload.CampaignID, campaignID)
	}
}

func TestAssembleDraftForRejectedCampaignIsNull(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	linkAudience(repo, campaignID, "hello")

	svc := newTestService(repo, &fakeDispatcher{})
	if _, err := svc.Reject(context.Background(), transport.RejectRequest{CampaignID: campaignID}); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	payload, err := svc.AssembleDraftFor(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("AssembleDraftFor() error = %v", err)
	}
	if payload != nil {
		t.Errorf("AssembleDraftFor() = %+v, want nil after rejection", payload)
	}
}

func TestAssembleDraftForPermissionDeniedGatesOnAuditState(t *testing.T) {
	repo := newFakeRepo()
	repo.getCampaignErr = apperr.New(apperr.KindForbidden, "permission denied")

	drafted := uuid.New()
	approved := uuid.New()
	repo.updates[drafted] = []domain.StatusUpdate{
		{CampaignID: drafted, Message: "Content drafted for review", UpdatedAt: time.Now()},
	}
	repo.updates[approved] = []domain.StatusUpdate{
		{CampaignID: approved, Message: "Broadcast approved", UpdatedAt: time.Now()},
	}

	svc := newTestService(repo, &fakeDispatcher{})

	payload, err := svc.AssembleDraftFor(context.Background(), drafted)
	if err != nil {
		t.Fatalf("AssembleDraftFor(drafted) error = %v", err)
	}
	if payload == nil {
		t.Fatal("AssembleDraftFor(drafted) = nil, want degraded payload")
	}
	if len(payload.Warnings) == 0 {
		t.Error("degraded payload carries no warnings")
	}

	payload, err = svc.AssembleDraftFor(context.Background(), approved)
	if err != nil {
		t.Fatalf("AssembleDraftFor(approved) error = %v", err)
	}
	if payload != nil {
		t.Errorf("AssembleDraftFor(approved) = %+v, want nil for non-drafted audit state", payload)
	}
}

func TestRejectClearsDraftView(t *testing.T) {
	repo := newFakeRepo()
	campaignID := draftedCampaign(repo)
	linkAudience(repo, campaignID, "hello")

	svc := newTestService(repo, &fakeDispatcher{})
	if _, err := svc.Reject(context.Background(), transport.RejectRequest{CampaignID: campaignID}); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	payload, err := svc.AssembleDraft(context.Background())
	if err != nil {
		t.Fatalf("AssembleDraft() error = %v", err)
	}
	if payload != nil {
		t.Errorf("draft view still shows %s after rejection", payload.CampaignID)
	}
}
