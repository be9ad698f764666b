package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/service"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/platform/httpkit"
	"metagapura_portal_backend/platform/validator"
)

// maxImageBytes caps in-memory reads of uploaded campaign images.
const maxImageBytes = 10 << 20

// Handler handles HTTP requests for the campaign lifecycle.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid campaign ID"
)

// New creates a new campaigns handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetDraft returns the campaign currently awaiting review, or the draft
// view of one campaign when a campaign_id query parameter is present.
// GET /api/v1/drafts
func (h *Handler) GetDraft(c *gin.Context) {
	var draft *transport.DraftPayload
	var err error

	if raw := c.Query("campaign_id"); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
			return
		}
		draft, err = h.svc.AssembleDraftFor(c.Request.Context(), id)
	} else {
		draft, err = h.svc.AssembleDraft(c.Request.Context())
	}
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.GetDraftResponse{Draft: draft}
	if draft != nil {
		resp.CampaignID = &draft.CampaignID
	}
	httpkit.OK(c, resp)
}

// GetDraftByID returns the reviewable view of a specific campaign.
// GET /api/v1/campaigns/:id/draft
func (h *Handler) GetDraftByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	draft, err := h.svc.AssembleDraftFor(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.GetDraftResponse{Draft: draft}
	if draft != nil {
		resp.CampaignID = &draft.CampaignID
	}
	httpkit.OK(c, resp)
}

// GetState reports the resolved lifecycle state for polling clients.
// GET /api/v1/campaigns/:id/state
func (h *Handler) GetState(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	state := h.svc.ResolveState(c.Request.Context(), id)
	httpkit.OK(c, transport.StateResponse{CampaignID: &id, State: string(state)})
}

// Approve approves the selected recipients and rejects the rest.
// POST /api/v1/drafts/approve
func (h *Handler) Approve(c *gin.Context) {
	var req transport.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Approve(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reject rejects the whole campaign.
// POST /api/v1/drafts/reject
func (h *Handler) Reject(c *gin.Context) {
	var req transport.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Reject(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Send triggers the broadcast for an approved campaign.
// POST /api/v1/drafts/send
func (h *Handler) Send(c *gin.Context) {
	var req transport.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Send(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateContent edits one recipient's message and/or schedule.
// POST /api/v1/drafts/update-content
func (h *Handler) UpdateContent(c *gin.Context) {
	var req transport.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.UpdateContent(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateBroadcast hands a new campaign brief (multipart, optional image) to
// the engine.
// POST /api/v1/broadcast/create
func (h *Handler) CreateBroadcast(c *gin.Context) {
	input := service.CreateBroadcastInput{
		Name:       c.PostForm("campaign_name"),
		Objective:  c.PostForm("campaign_objective"),
		AdminNotes: c.PostForm("admin_notes"),
	}

	if file, err := c.FormFile("image"); err == nil && file != nil {
		opened, err := file.Open()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable image upload", nil)
			return
		}
		defer func() {
			_ = opened.Close()
		}()

		data, err := io.ReadAll(io.LimitReader(opened, maxImageBytes+1))
		if err != nil || len(data) > maxImageBytes {
			httpkit.Error(c, http.StatusBadRequest, "image upload too large", nil)
			return
		}

		input.ImageFilename = file.Filename
		input.ImageContentType = file.Header.Get("Content-Type")
		input.ImageData = data
	}

	result, err := h.svc.CreateBroadcast(c.Request.Context(), input)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// TriggerSync asks the engine to refresh the audience pool.
// POST /api/v1/broadcast/sync
func (h *Handler) TriggerSync(c *gin.Context) {
	if err := h.svc.TriggerSync(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}
