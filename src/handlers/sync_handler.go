package handlers

import (
	"net/http"

	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/services"
	"github.com/username/poolcosts/backend/src/utils"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(service services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: service}
}

// HandleSync runs one Paperless sync and reports the counts.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	logger.InfoFromContext(r.Context(), "Manual sync requested")
	result, err := h.syncService.Run(r.Context())
	if err != nil {
		sendServiceError(w, r, err, "syncing with Paperless")
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}
