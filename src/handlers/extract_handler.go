package handlers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/username/poolcosts/backend/src/extraction"
	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/metrics"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/security/validation"
	"github.com/username/poolcosts/backend/src/utils"
)

type ExtractHandler struct {
	extractor     *extraction.Extractor
	maxUploadSize int64
}

func NewExtractHandler(extractor *extraction.Extractor, maxUploadSize int64) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, maxUploadSize: maxUploadSize}
}

// HandleExtract runs the engine on posted OCR text. It accepts a JSON body
// {text, correspondent} or a multipart form with a "file" text upload.
func (h *ExtractHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req models.ExtractRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		text, ok := h.readUpload(w, r)
		if !ok {
			return
		}
		req.Text = text
		req.Correspondent = r.FormValue("correspondent")
	default:
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctxLogger.Warn("Invalid extract request body", "error", err)
			utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req.Text = validation.StripUnprintable(req.Text)
	}

	res := h.extractor.Extract(req.Text, strings.TrimSpace(req.Correspondent))
	metrics.ObserveExtraction(res.Confidence, res.NeedsReview)
	ctxLogger.Info("Extraction finished", "confidence", res.Confidence, "needsReview", res.NeedsReview, "candidates", res.Debug.CandidatesChecked)

	utils.WriteJSON(w, http.StatusOK, models.NewExtractResponse(res))
}

func (h *ExtractHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctxLogger := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+4096)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("Failed to process upload (max %d KB)", h.maxUploadSize/1024), http.StatusBadRequest)
		return "", false
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return "", false
	}
	defer file.Close()

	if err := validation.ValidateClientContentType(fileHeader.Header.Get("Content-Type")); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	text, err := validation.ReadTextUpload(file, h.maxUploadSize)
	if err != nil {
		sendServiceError(w, r, err, "reading the upload")
		return "", false
	}
	ctxLogger.Debug("Text upload accepted", "filename", fileHeader.Filename, "bytes", len(text))
	return text, true
}
