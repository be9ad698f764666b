package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/internal/events"
	"metagapura_portal_backend/platform/apperr"
	"metagapura_portal_backend/platform/logger"
)

// fakeRepo implements repository.Repository with per-method hooks and call
// recording, so tests can assert both outcomes and side effects.
type fakeRepo struct {
	campaigns map[uuid.UUID]repository.Campaign
	updates   map[uuid.UUID][]domain.StatusUpdate
	rows      map[uuid.UUID][]domain.AudienceRow
	audiences map[uuid.UUID]domain.Audience

	getCampaignErr    error
	latestDraftedErr  error
	setStatusErr      error
	appendErr         error
	audienceRowsErr   error
	setTargetErr      error
	updateContentRows int64

	statusWrites  []statusWrite
	targetWrites  []targetWrite
	auditRecords  []repository.AuditRecord
	rejectSweeps  []uuid.UUID
	contentWrites int
}

type statusWrite struct {
	campaignID uuid.UUID
	status     domain.CampaignStatus
}

type targetWrite struct {
	campaignID  uuid.UUID
	audienceIDs []uuid.UUID
	status      domain.DeliveryStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		campaigns: make(map[uuid.UUID]repository.Campaign),
		updates:   make(map[uuid.UUID][]domain.StatusUpdate),
		rows:      make(map[uuid.UUID][]domain.AudienceRow),
		audiences: make(map[uuid.UUID]domain.Audience),
	}
}

func (f *fakeRepo) GetCampaign(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	if f.getCampaignErr != nil {
		return repository.Campaign{}, f.getCampaignErr
	}
	campaign, ok := f.campaigns[id]
	if !ok {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	return campaign, nil
}

func (f *fakeRepo) LatestDraftedCampaign(_ context.Context) (repository.Campaign, error) {
	if f.latestDraftedErr != nil {
		return repository.Campaign{}, f.latestDraftedErr
	}
	var latest *repository.Campaign
	for _, campaign := range f.campaigns {
		if campaign.Status != domain.CampaignStatusContentDrafted {
			continue
		}
		c := campaign
		if latest == nil || c.UpdatedAt.After(latest.UpdatedAt) {
			latest = &c
		}
	}
	if latest == nil {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	return *latest, nil
}

func (f *fakeRepo) ListDraftedCampaigns(_ context.Context) ([]repository.Campaign, error) {
	var drafted []repository.Campaign
	for _, campaign := range f.campaigns {
		if campaign.Status == domain.CampaignStatusContentDrafted {
			drafted = append(drafted, campaign)
		}
	}
	for i := 0; i < len(drafted); i++ {
		for j := i + 1; j < len(drafted); j++ {
			if drafted[j].UpdatedAt.After(drafted[i].UpdatedAt) {
				drafted[i], drafted[j] = drafted[j], drafted[i]
			}
		}
	}
	return drafted, nil
}

func (f *fakeRepo) SetCampaignStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	campaign, ok := f.campaigns[id]
	if !ok {
		return apperr.NotFound("campaign not found")
	}
	campaign.Status = status
	f.campaigns[id] = campaign
	f.statusWrites = append(f.statusWrites, statusWrite{campaignID: id, status: status})
	return nil
}

func (f *fakeRepo) StatusUpdates(_ context.Context, campaignID uuid.UUID, _ int) ([]domain.StatusUpdate, error) {
	return f.updates[campaignID], nil
}

func (f *fakeRepo) RecentStatusUpdates(_ context.Context, _ int) ([]domain.StatusUpdate, error) {
	var all []domain.StatusUpdate
	for _, list := range f.updates {
		all = append(all, list...)
	}
	return all, nil
}

func (f *fakeRepo) AppendStatusUpdate(_ context.Context, record repository.AuditRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.auditRecords = append(f.auditRecords, record)
	return nil
}

func (f *fakeRepo) AudienceRows(_ context.Context, campaignID uuid.UUID) ([]domain.AudienceRow, error) {
	if f.audienceRowsErr != nil {
		return nil, f.audienceRowsErr
	}
	var withContent []domain.AudienceRow
	for _, row := range f.rows[campaignID] {
		if row.Content != "" {
			withContent = append(withContent, row)
		}
	}
	return withContent, nil
}

func (f *fakeRepo) AudienceRowsFor(_ context.Context, campaignID, audienceID uuid.UUID) ([]domain.AudienceRow, error) {
	var matching []domain.AudienceRow
	for _, row := range f.rows[campaignID] {
		if row.AudienceID == audienceID {
			matching = append(matching, row)
		}
	}
	return matching, nil
}

func (f *fakeRepo) LinkedAudienceIDs(_ context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, row := range f.rows[campaignID] {
		if _, ok := seen[row.AudienceID]; ok {
			continue
		}
		seen[row.AudienceID] = struct{}{}
		ids = append(ids, row.AudienceID)
	}
	return ids, nil
}

func (f *fakeRepo) SetTargetStatus(_ context.Context, campaignID uuid.UUID, audienceIDs []uuid.UUID, status domain.DeliveryStatus) (int64, error) {
	if f.setTargetErr != nil {
		return 0, f.setTargetErr
	}
	f.targetWrites = append(f.targetWrites, targetWrite{campaignID: campaignID, audienceIDs: audienceIDs, status: status})
	return int64(len(audienceIDs)), nil
}

func (f *fakeRepo) RejectAllAudienceRows(_ context.Context, campaignID uuid.UUID, _ string) (int64, error) {
	f.rejectSweeps = append(f.rejectSweeps, campaignID)
	return int64(len(f.rows[campaignID])), nil
}

func (f *fakeRepo) UpdateAudienceContent(_ context.Context, _, _ uuid.UUID, _ *string, _ *time.Time) (int64, error) {
	f.contentWrites++
	return f.updateContentRows, nil
}

func (f *fakeRepo) GetAudiences(_ context.Context, ids []uuid.UUID) ([]domain.Audience, error) {
	var results []domain.Audience
	for _, id := range ids {
		if audience, ok := f.audiences[id]; ok {
			results = append(results, audience)
		}
	}
	return results, nil
}

func (f *fakeRepo) CampaignImage(_ context.Context, _ uuid.UUID) (repository.Asset, error) {
	return repository.Asset{}, apperr.NotFound("campaign image not found")
}

func (f *fakeRepo) CreateAsset(_ context.Context, _ repository.Asset) error {
	return nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// fakeDispatcher records dispatches and answers with a canned result.
type fakeDispatcher struct {
	configured map[engine.Endpoint]bool
	result     engine.Result
	dispatches []engine.Endpoint
	payloads   []any
}

func (f *fakeDispatcher) Configured(endpoint engine.Endpoint) bool {
	return f.configured[endpoint]
}

func (f *fakeDispatcher) Dispatch(_ context.Context, endpoint engine.Endpoint, payload any) engine.Result {
	f.dispatches = append(f.dispatches, endpoint)
	f.payloads = append(f.payloads, payload)
	return f.result
}

func (f *fakeDispatcher) DispatchMultipart(_ context.Context, endpoint engine.Endpoint, _ map[string]string, _ string, _ []byte) engine.Result {
	f.dispatches = append(f.dispatches, endpoint)
	return f.result
}

func newTestService(repo repository.Repository, dispatcher Dispatcher) *Service {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	return New(repo, dispatcher, nil, nil, bus, log)
}
