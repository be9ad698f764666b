// Package service implements the campaign lifecycle commands and read
// models: state resolution, draft assembly, and the approve/reject/send/
// update/cleanup command handlers.
package service

import (
	"context"

	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/internal/events"
	"metagapura_portal_backend/platform/logger"
)

// Audit agent names written by the portal itself; the engine's own agents
// use their pipeline names (researcher, matchmaker, copywriter, guardrails).
const (
	agentApprove = "broadcast_approve"
	agentReject  = "broadcast_reject"
	agentSend    = "broadcast_send"
	agentCleanup = "draft_cleanup"
)

// statusUpdateScanLimit bounds the audit page used by the permission-degraded
// fallback paths.
const statusUpdateScanLimit = 100

// Dispatcher triggers the external workflow engine.
type Dispatcher interface {
	Configured(endpoint engine.Endpoint) bool
	Dispatch(ctx context.Context, endpoint engine.Endpoint, payload any) engine.Result
	DispatchMultipart(ctx context.Context, endpoint engine.Endpoint, fields map[string]string, filename string, data []byte) engine.Result
}

// ImageStore persists campaign images and serves presigned URLs for them.
type ImageStore interface {
	Enabled() bool
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// CleanupQueue enqueues background draft maintenance runs.
type CleanupQueue interface {
	EnqueueDraftCleanup(ctx context.Context) error
}

// Service orchestrates the campaign lifecycle.
type Service struct {
	repo    repository.Repository
	engine  Dispatcher
	storage ImageStore
	cleanup CleanupQueue
	bus     events.Bus
	log     *logger.Logger
}

// New creates a campaign lifecycle service. storage may be nil when MinIO is
// not configured; image-dependent features degrade gracefully. cleanup may
// be nil; draft cleanup then runs on the periodic schedule only.
func New(repo repository.Repository, dispatcher Dispatcher, storage ImageStore, cleanup CleanupQueue, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		engine:  dispatcher,
		storage: storage,
		cleanup: cleanup,
		bus:     bus,
		log:     log,
	}
}

func (s *Service) imagesEnabled() bool {
	return s.storage != nil && s.storage.Enabled()
}
