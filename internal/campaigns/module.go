// Package campaigns provides the campaign broadcast lifecycle bounded
// context: draft review, approve/reject/send commands, and state feeds.
package campaigns

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/internal/campaigns/handler"
	"metagapura_portal_backend/internal/campaigns/repository"
	"metagapura_portal_backend/internal/campaigns/service"
	"metagapura_portal_backend/internal/campaigns/watch"
	"metagapura_portal_backend/internal/events"
	apphttp "metagapura_portal_backend/internal/http"
	"metagapura_portal_backend/internal/notification/sse"
	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/logger"
	"metagapura_portal_backend/platform/validator"
)

// Module is the campaigns bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
	sse     *sse.Service
	watcher *watch.Watcher
	log     *logger.Logger
}

// NewModule creates and initializes the campaigns module with all its
// dependencies. storage and cleanup may be nil when MinIO / Redis are not
// configured.
func NewModule(pool *pgxpool.Pool, dispatcher service.Dispatcher, storage service.ImageStore, cleanup service.CleanupQueue, bus events.Bus, watchCfg config.WatchConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, dispatcher, storage, cleanup, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
		sse:     sse.New(),
		watcher: watch.New(svc, watchCfg, log),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "campaigns"
}

// Service returns the service layer for external use (scheduler worker).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// SSE returns the push feed so the composition root can close it on shutdown.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// RegisterRoutes mounts campaign lifecycle routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	drafts := ctx.Protected.Group("/drafts")
	drafts.GET("", m.handler.GetDraft)
	drafts.POST("/approve", m.handler.Approve)
	drafts.POST("/reject", m.handler.Reject)
	drafts.POST("/send", m.handler.Send)
	drafts.POST("/update-content", m.handler.UpdateContent)

	broadcast := ctx.Protected.Group("/broadcast")
	broadcast.POST("/create", m.handler.CreateBroadcast)
	broadcast.POST("/sync", m.handler.TriggerSync)

	campaignGroup := ctx.Protected.Group("/campaigns")
	campaignGroup.GET("/events", m.streamEvents)
	campaignGroup.GET("/:id/state", m.handler.GetState)
	campaignGroup.GET("/:id/draft", m.handler.GetDraftByID)
}

// streamEvents serves the SSE feed. When the client filters on one campaign
// a poll subscription runs for the lifetime of the connection, so state
// changes written directly by the engine reach the feed too.
func (m *Module) streamEvents(c *gin.Context) {
	if raw := c.Query("campaign_id"); raw != "" {
		if campaignID, err := uuid.Parse(raw); err == nil {
			stop := m.watcher.Subscribe(c.Request.Context(), campaignID, func(state domain.State) {
				m.sse.Publish(sse.Event{
					Type:       sse.EventStateChanged,
					CampaignID: campaignID,
					State:      string(state),
				})
			})
			defer stop()
		}
	}

	m.sse.Handler()(c)
}

// RegisterHandlers subscribes to domain events and relays them to the SSE feed.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.CampaignStateChanged{}.EventName(), m)
	bus.Subscribe(events.BroadcastTriggered{}.EventName(), m)
}

// Handle routes events to the SSE feed.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.CampaignStateChanged:
		m.sse.Publish(sse.Event{
			Type:       sse.EventStateChanged,
			CampaignID: e.CampaignID,
			State:      e.State,
		})
	case events.BroadcastTriggered:
		m.sse.Publish(sse.Event{
			Type:       sse.EventBroadcastTriggered,
			CampaignID: e.CampaignID,
			Data: map[string]interface{}{
				"recipientCount": e.RecipientCount,
				"accepted":       e.Accepted,
			},
		})
	}
	return nil
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
