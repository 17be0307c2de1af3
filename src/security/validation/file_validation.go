package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/username/poolcosts/backend/src/logger"
)

// AllowedTextContentTypes are the client-declared types accepted for OCR text uploads.
var AllowedTextContentTypes = map[string]bool{
	"text/plain":               true,
	"application/octet-stream": true, // curl -F without ;type=
	"":                         true,
}

// ValidateClientContentType checks the Content-Type the client declared for an upload part.
func ValidateClientContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedTextContentTypes[ct] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("%w: file type '%s' is not allowed, upload plain text", ErrValidationFailed, contentType)
	}
	return nil
}

// isBinaryContent reports null bytes or invalid UTF-8.
func isBinaryContent(buf []byte) bool {
	return bytes.IndexByte(buf, 0) != -1 || !utf8.Valid(buf)
}

// ReadTextUpload reads at most maxBytes of OCR text and rejects binary or oversized content.
func ReadTextUpload(r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", ErrValidationFailed, maxBytes)
	}
	if isBinaryContent(data) {
		logger.L.Warn("Upload rejected: binary content detected in text upload")
		return "", fmt.Errorf("%w: file appears to be binary, not text", ErrValidationFailed)
	}
	if len(data) > 0 {
		detected := strings.ToLower(strings.Split(http.DetectContentType(data), ";")[0])
		if detected != "text/plain" {
			logger.L.Warn("Disallowed detected upload content type", "detectedContentType", detected)
			return "", fmt.Errorf("%w: detected content type '%s' is not plain text", ErrValidationFailed, detected)
		}
	}
	return StripUnprintable(string(data)), nil
}
