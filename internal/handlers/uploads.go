package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/upload"
)

// UploadsResponse represents the upload queue.
type UploadsResponse struct {
	Items     []models.UploadItem   `json:"items"`
	Metadata  models.UploadMetadata `json:"metadata"`
	CanSubmit bool                  `json:"can_submit"`
}

func (h *Handler) uploadsResponse() UploadsResponse {
	return UploadsResponse{
		Items:     h.Uploads.Items(),
		Metadata:  h.Uploads.Metadata(),
		CanSubmit: h.Uploads.CanSubmit(),
	}
}

// ListUploads handles fetching the queue.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.uploadsResponse())
}

// AddUploads stages the "files" parts of a multipart body.
func (h *Handler) AddUploads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]upload.FileHandle, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "failed to read "+fh.Filename)
			return
		}
		files = append(files, upload.Bytes{Filename: fh.Filename, Data: data})
	}

	h.JSON(w, http.StatusCreated, map[string][]models.UploadItem{"items": h.Uploads.Add(files...)})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// RemoveUpload handles removing a staged file.
func (h *Handler) RemoveUpload(w http.ResponseWriter, r *http.Request) {
	err := h.Uploads.Remove(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, upload.ErrItemNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, upload.ErrSubmitInFlight):
		h.Error(w, http.StatusConflict, err.Error())
	case err != nil:
		h.Error(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetUploadMetadata stores the draft metadata.
func (h *Handler) SetUploadMetadata(w http.ResponseWriter, r *http.Request) {
	var meta models.UploadMetadata
	if err := decode(r, &meta); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.Uploads.SetMetadata(meta)
	h.JSON(w, http.StatusOK, h.uploadsResponse())
}

// SubmitUploads sends the queue. Without a body the draft metadata is used.
func (h *Handler) SubmitUploads(w http.ResponseWriter, r *http.Request) {
	meta := h.Uploads.Metadata()
	if err := decode(r, &meta); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.Uploads.Submit(r.Context(), meta)
	switch {
	case errors.Is(err, upload.ErrSubmitDisabled), errors.Is(err, upload.ErrSubmitInFlight):
		h.Error(w, http.StatusConflict, err.Error())
	case err != nil:
		h.Error(w, http.StatusBadGateway, err.Error())
	default:
		h.JSON(w, http.StatusOK, h.uploadsResponse())
	}
}
