package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/services"
)

type GameHandler struct {
	log       *logger.Logger
	ingestSvc services.IngestionService
}

func NewGameHandler(log *logger.Logger, ingestSvc services.IngestionService) *GameHandler {
	return &GameHandler{
		log:       log.With("handler", "GameHandler"),
		ingestSvc: ingestSvc,
	}
}

type ingestRequest struct {
	AppID    int64  `json:"app_id"`
	StoreURL string `json:"store_url"`
	Force    bool   `json:"force"`
}

// POST /api/games/ingest
// Accepts either a numeric app id or a store page URL.
func (h *GameHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	opts := services.IngestOptions{Force: req.Force}
	var err error
	var game interface{}
	switch {
	case req.AppID != 0:
		game, err = h.ingestSvc.Ingest(c.Request.Context(), req.AppID, opts)
	case req.StoreURL != "":
		game, err = h.ingestSvc.IngestRef(c.Request.Context(), req.StoreURL, opts)
	default:
		RespondError(c, http.StatusBadRequest, "invalid_body", apperrors.ErrInvalidArgument)
		return
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, game)
}

// GET /api/games/:appid
func (h *GameHandler) Get(c *gin.Context) {
	appID, ok := appIDParam(c)
	if !ok {
		return
	}
	game, err := h.ingestSvc.Get(c.Request.Context(), appID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, game)
}

func appIDParam(c *gin.Context) (int64, bool) {
	appID, err := strconv.ParseInt(c.Param("appid"), 10, 64)
	if err != nil || appID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_app_id", apperrors.ErrInvalidArgument)
		return 0, false
	}
	return appID, true
}
