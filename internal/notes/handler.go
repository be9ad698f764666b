package notes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"metagapura_portal_backend/platform/httpkit"
)

// Handler handles HTTP requests for note summaries.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Summary generates (or refuses, inside the rate window) the notes digest.
// GET /api/v1/notes/summary
func (h *Handler) Summary(c *gin.Context) {
	userID, ok := httpkit.GetUserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	result, err := h.svc.Summarize(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
