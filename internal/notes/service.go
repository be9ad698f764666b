package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/platform/apperr"
	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/logger"
)

const summaryNotesLimit = 50

// SummaryResponse is the notes summary payload.
type SummaryResponse struct {
	Summary     string    `json:"summary"`
	NotesCount  int       `json:"notes_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Dispatcher is the slice of the engine client the summary path uses.
type Dispatcher interface {
	Configured(endpoint engine.Endpoint) bool
	Dispatch(ctx context.Context, endpoint engine.Endpoint, payload any) engine.Result
}

// Service generates rate-windowed note summaries. Each operator gets one
// summary per window (default 24h); the window is tracked in Redis so it
// survives restarts and is shared across replicas.
type Service struct {
	repo    *Repository
	engine  Dispatcher
	redis   *redis.Client
	window  time.Duration
	apiKey  string
	model   string
	log     *logger.Logger
}

func NewService(repo *Repository, dispatcher Dispatcher, redisClient *redis.Client, cfg config.NotesConfig, log *logger.Logger) *Service {
	window := cfg.GetSummaryWindow()
	if window <= 0 {
		window = 24 * time.Hour
	}

	return &Service{
		repo:    repo,
		engine:  dispatcher,
		redis:   redisClient,
		window:  window,
		apiKey:  cfg.GetGeminiAPIKey(),
		model:   cfg.GetGeminiModel(),
		log:     log,
	}
}

// Summarize builds a digest of recent notes for the given operator. Inside
// the rate window it fails with a rate-limited error carrying the remaining
// hours; the client renders that as a countdown, not a failure.
func (s *Service) Summarize(ctx context.Context, userID uuid.UUID) (SummaryResponse, error) {
	release, err := s.claimWindow(ctx, userID)
	if err != nil {
		return SummaryResponse{}, err
	}

	notes, err := s.repo.RecentNotes(ctx, summaryNotesLimit)
	if err != nil {
		release(ctx)
		return SummaryResponse{}, err
	}
	if len(notes) == 0 {
		release(ctx)
		return SummaryResponse{}, apperr.NotFound("no notes to summarize")
	}

	summary, err := s.generate(ctx, notes)
	if err != nil {
		release(ctx)
		return SummaryResponse{}, err
	}

	return SummaryResponse{
		Summary:     summary,
		NotesCount:  len(notes),
		GeneratedAt: time.Now(),
	}, nil
}

// claimWindow atomically claims the operator's summary slot. The returned
// release func frees the slot again when generation fails, so a failed
// attempt does not burn the window.
func (s *Service) claimWindow(ctx context.Context, userID uuid.UUID) (func(context.Context), error) {
	if s.redis == nil {
		// No Redis means no shared window; generation stays available.
		return func(context.Context) {}, nil
	}

	key := "notes:summary:" + userID.String()

	claimed, err := s.redis.SetNX(ctx, key, time.Now().Format(time.RFC3339), s.window).Result()
	if err != nil {
		return nil, fmt.Errorf("claim summary window: %w", err)
	}
	if !claimed {
		ttl, err := s.redis.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = s.window
		}
		hoursRemaining := int(math.Ceil(ttl.Hours()))
		if hoursRemaining < 1 {
			hoursRemaining = 1
		}
		return nil, apperr.RateLimited("summary already generated in this window").
			WithDetails(map[string]interface{}{"hoursRemaining": hoursRemaining})
	}

	return func(releaseCtx context.Context) {
		if err := s.redis.Del(releaseCtx, key).Err(); err != nil {
			s.log.Warn("release summary window failed", "error", err.Error())
		}
	}, nil
}

func (s *Service) generate(ctx context.Context, notes []Note) (string, error) {
	if s.engine != nil && s.engine.Configured(engine.EndpointNotesSummary) {
		summary, err := s.generateViaEngine(ctx, notes)
		if err == nil {
			return summary, nil
		}
		s.log.Warn("engine summary failed, falling back to direct generation", "error", err.Error())
	}

	return s.generateDirect(ctx, notes)
}

func (s *Service) generateViaEngine(ctx context.Context, notes []Note) (string, error) {
	payload := struct {
		Notes []string `json:"notes"`
	}{Notes: noteContents(notes)}

	result := s.engine.Dispatch(ctx, engine.EndpointNotesSummary, payload)
	if !result.OK {
		return "", fmt.Errorf("engine summary: %s", result.Detail())
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(result.Body, &parsed); err != nil || strings.TrimSpace(parsed.Summary) == "" {
		return "", fmt.Errorf("engine summary: unexpected response shape")
	}

	return parsed.Summary, nil
}

func (s *Service) generateDirect(ctx context.Context, notes []Note) (string, error) {
	if s.apiKey == "" {
		return "", apperr.Unavailable("no summary backend is configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(buildSummaryPrompt(notes)), nil)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("generate summary: empty response")
	}
	return summary, nil
}

func buildSummaryPrompt(notes []Note) string {
	var b strings.Builder
	b.WriteString("Summarize the following operator notes into a short digest.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Output plain prose, at most five sentences.\n")
	b.WriteString("- Group related notes; drop duplicates.\n")
	b.WriteString("- Do not invent facts that are not in the notes.\n\nNotes:\n")
	for _, content := range noteContents(notes) {
		b.WriteString("- ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}

func noteContents(notes []Note) []string {
	contents := make([]string, 0, len(notes))
	for _, note := range notes {
		trimmed := strings.TrimSpace(note.Content)
		if trimmed != "" {
			contents = append(contents, trimmed)
		}
	}
	return contents
}
