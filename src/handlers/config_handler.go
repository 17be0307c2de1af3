package handlers

import (
	"net/http"

	"github.com/username/poolcosts/backend/src/config"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/utils"
)

// HandleGetConfig exposes the non-secret settings. The Paperless token is never included.
func HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := config.Cfg
	if cfg == nil {
		utils.SendJSONError(w, "configuration not loaded", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.ConfigOut{
		PaperlessBaseURL:         cfg.PaperlessBaseURL,
		PoolTagName:              cfg.PoolTagName,
		SchedulerEnabled:         cfg.SchedulerEnabled,
		SchedulerIntervalMinutes: cfg.SchedulerIntervalMinutes,
		SchedulerRunOnStartup:    cfg.SchedulerRunOnStartup,
		SyncLookbackDays:         cfg.SyncLookbackDays,
	})
}
