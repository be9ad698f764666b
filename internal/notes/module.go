package notes

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apphttp "metagapura_portal_backend/internal/http"
	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/logger"
)

// Module is the notes summary module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the notes module. redisClient may be
// nil; the rate window is then not enforced.
func NewModule(pool *pgxpool.Pool, dispatcher Dispatcher, redisClient *redis.Client, cfg config.NotesConfig, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, dispatcher, redisClient, cfg, log)

	return &Module{
		handler: NewHandler(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notes"
}

// RegisterRoutes mounts the notes summary route on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/notes/summary", m.handler.Summary)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
