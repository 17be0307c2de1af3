package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/services"
	"github.com/username/poolcosts/backend/src/utils"
)

const maxInvoicePageSize = 500

type InvoiceHandler struct {
	invoiceService services.InvoiceService
}

func NewInvoiceHandler(service services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: service}
}

func (h *InvoiceHandler) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.InvoiceFilter{Vendor: strings.TrimSpace(q.Get("vendor"))}

	if raw := q.Get("needs_review"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendJSONError(w, "needs_review must be true or false", http.StatusBadRequest)
			return
		}
		filter.NeedsReview = &v
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	filter.Year = year

	var err error
	if filter.Limit, err = intQuery(q.Get("limit"), 0); err != nil || filter.Limit < 0 || filter.Limit > maxInvoicePageSize {
		utils.SendJSONError(w, "limit must be between 0 and 500", http.StatusBadRequest)
		return
	}
	if filter.Offset, err = intQuery(q.Get("offset"), 0); err != nil || filter.Offset < 0 {
		utils.SendJSONError(w, "offset must not be negative", http.StatusBadRequest)
		return
	}

	invoices, err := h.invoiceService.ListInvoices(r.Context(), filter)
	if err != nil {
		sendServiceError(w, r, err, "listing invoices")
		return
	}
	utils.WriteJSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inv, err := h.invoiceService.GetInvoice(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err, "loading the invoice")
		return
	}
	utils.WriteJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) HandleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var upd models.InvoiceUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		logger.FromContext(r.Context()).Warn("Invalid invoice update body", "id", id, "error", err)
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := h.invoiceService.UpdateInvoice(r.Context(), id, upd)
	if err != nil {
		sendServiceError(w, r, err, "updating the invoice")
		return
	}
	utils.WriteJSON(w, http.StatusOK, inv)
}

func intQuery(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return strconv.Atoi(strings.TrimSpace(raw))
}
