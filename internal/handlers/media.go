package handlers

import (
	"io"
	"net/http"

	"github.com/studyhall-app/studyhall/internal/media"
)

// maxUploadSize caps attachment uploads at 10 MB.
const maxUploadSize = 10 << 20

// UploadResponse represents a successful media upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// UploadMedia accepts a multipart attachment (image or voice note) and
// returns the hosted URL for use as a message's media_ref.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		h.Error(w, http.StatusRequestEntityTooLarge, "file too large (max 10MB)")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	hosted, err := h.uploader.Upload(r.Context(), data, contentType)
	if err != nil {
		if err == media.ErrNotConfigured {
			h.Error(w, http.StatusServiceUnavailable, "uploads are not available")
			return
		}
		h.Error(w, http.StatusBadGateway, "upload failed")
		return
	}

	h.JSON(w, http.StatusOK, UploadResponse{URL: hosted})
}
