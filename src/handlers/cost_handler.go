package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/services"
	"github.com/username/poolcosts/backend/src/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CostHandler struct {
	costService   services.CostService
	exportService services.ExportService
}

func NewCostHandler(costs services.CostService, export services.ExportService) *CostHandler {
	return &CostHandler{costService: costs, exportService: export}
}

func (h *CostHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	summary, err := h.costService.Summary(r.Context(), year)
	if err != nil {
		sendServiceError(w, r, err, "building the summary")
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (h *CostHandler) HandleGetCosts(w http.ResponseWriter, r *http.Request) {
	filter, ok := costFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.costService.AllCosts(r.Context(), filter)
	if err != nil {
		sendServiceError(w, r, err, "listing costs")
		return
	}
	utils.WriteJSON(w, http.StatusOK, rows)
}

func (h *CostHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", h.exportService.WriteCSV)
}

func (h *CostHandler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", xlsxContentType, h.exportService.WriteXLSX)
}

// export renders into a buffer first so a failure still produces a JSON error.
func (h *CostHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string,
	write func(ctx context.Context, w io.Writer, filter model.CostFilter) error) {
	filter, ok := costFilter(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := write(r.Context(), &buf, filter); err != nil {
		sendServiceError(w, r, err, "exporting costs")
		return
	}

	name := "poolkosten"
	if filter.Year > 0 {
		name = fmt.Sprintf("%s_%d", name, filter.Year)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, ext))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context()).Error("Error writing export response", "format", ext, "error", err)
	}
}

func (h *CostHandler) HandleListManualCosts(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	costs, err := h.costService.ListManualCosts(r.Context(), year)
	if err != nil {
		sendServiceError(w, r, err, "listing manual costs")
		return
	}
	utils.WriteJSON(w, http.StatusOK, costs)
}

func (h *CostHandler) HandleGetManualCost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	mc, err := h.costService.GetManualCost(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err, "loading the manual cost")
		return
	}
	utils.WriteJSON(w, http.StatusOK, mc)
}

func (h *CostHandler) HandleCreateManualCost(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeManualCost(w, r)
	if !ok {
		return
	}
	mc, err := h.costService.CreateManualCost(r.Context(), in)
	if err != nil {
		sendServiceError(w, r, err, "creating the manual cost")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, mc)
}

func (h *CostHandler) HandleUpdateManualCost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	in, ok := decodeManualCost(w, r)
	if !ok {
		return
	}
	mc, err := h.costService.UpdateManualCost(r.Context(), id, in)
	if err != nil {
		sendServiceError(w, r, err, "updating the manual cost")
		return
	}
	utils.WriteJSON(w, http.StatusOK, mc)
}

func (h *CostHandler) HandleDeleteManualCost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.costService.DeleteManualCost(r.Context(), id); err != nil {
		sendServiceError(w, r, err, "deleting the manual cost")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeManualCost(w http.ResponseWriter, r *http.Request) (models.ManualCostInput, bool) {
	var in models.ManualCostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		logger.FromContext(r.Context()).Warn("Invalid manual cost body", "error", err)
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return in, false
	}
	return in, true
}

func costFilter(w http.ResponseWriter, r *http.Request) (model.CostFilter, bool) {
	year, ok := yearParam(w, r)
	if !ok {
		return model.CostFilter{}, false
	}
	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
	switch kind {
	case "", model.KindInvoice, model.KindManual:
	default:
		utils.SendJSONError(w, "kind must be invoice or manual", http.StatusBadRequest)
		return model.CostFilter{}, false
	}
	return model.CostFilter{Year: year, Kind: kind}, true
}
