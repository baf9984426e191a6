package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/services"
)

type SimilarityHandler struct {
	log    *logger.Logger
	simSvc services.SimilarityService
}

func NewSimilarityHandler(log *logger.Logger, simSvc services.SimilarityService) *SimilarityHandler {
	return &SimilarityHandler{
		log:    log.With("handler", "SimilarityHandler"),
		simSvc: simSvc,
	}
}

// GET /api/games/:appid/similar?facet=all&limit=10&threshold=0.5
func (h *SimilarityHandler) Similar(c *gin.Context) {
	appID, ok := appIDParam(c)
	if !ok {
		return
	}

	facet := c.DefaultQuery("facet", "all")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = parsed
	}
	threshold := -1.0
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_threshold", err)
			return
		}
		threshold = parsed
	}

	matches, err := h.simSvc.FindSimilar(c.Request.Context(), appID, facet, limit, threshold)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"app_id": appID, "facet": facet, "matches": matches})
}
