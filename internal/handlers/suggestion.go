package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/services"
)

type SuggestionHandler struct {
	log     *logger.Logger
	sugSvc  services.SuggestionService
	autoSvc services.AutoIngestService
}

func NewSuggestionHandler(log *logger.Logger, sugSvc services.SuggestionService, autoSvc services.AutoIngestService) *SuggestionHandler {
	return &SuggestionHandler{
		log:     log.With("handler", "SuggestionHandler"),
		sugSvc:  sugSvc,
		autoSvc: autoSvc,
	}
}

type refreshResponse struct {
	*services.RefreshResult
	Queued []int64 `json:"queued,omitempty"`
}

// POST /api/games/:appid/suggestions/refresh
func (h *SuggestionHandler) Refresh(c *gin.Context) {
	appID, ok := appIDParam(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	res, err := h.sugSvc.Refresh(c.Request.Context(), appID, force)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	// Dangling targets go to the bounded background cascade; the response
	// reports which ones were actually accepted this round.
	var queued []int64
	if h.autoSvc != nil && len(res.Missing) > 0 {
		queued = h.autoSvc.Enqueue(c.Request.Context(), res.Missing)
	}
	RespondOK(c, refreshResponse{RefreshResult: res, Queued: queued})
}

// GET /api/games/:appid/suggestions
func (h *SuggestionHandler) Get(c *gin.Context) {
	appID, ok := appIDParam(c)
	if !ok {
		return
	}
	res, err := h.sugSvc.Get(c.Request.Context(), appID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, res)
}

// DELETE /api/games/:appid/suggestions
func (h *SuggestionHandler) Clear(c *gin.Context) {
	appID, ok := appIDParam(c)
	if !ok {
		return
	}
	if err := h.sugSvc.Clear(c.Request.Context(), appID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"cleared": true})
}
