// Package httpapi exposes the ingestion gateway over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/Lllllllleong/ingestiongateway/internal/models"
	"github.com/Lllllllleong/ingestiongateway/internal/services"
)

// maxMemory is the multipart size kept in memory before spilling to disk.
const maxMemory = 32 << 20

const fileRequiredDetail = "file field is required"

// Gateway is the ingestion surface the handlers depend on.
type Gateway interface {
	ProcessFile(ctx context.Context, filename string, content io.Reader) (*models.ProcessResponse, error)
	ProcessURL(ctx context.Context, url string) (*models.ProcessResponse, error)
}

// Handler serves the ingestion routes on top of a Gateway.
type Handler struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewHandler returns a Handler; a nil logger falls back to slog.Default().
func NewHandler(gateway Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gateway: gateway, logger: logger}
}

// ProcessFile handles POST /process/ with a multipart "file" field.
func (h *Handler) ProcessFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			writeJSON(w, http.StatusUnprocessableEntity, models.DetailResponse{Detail: fileRequiredDetail})
			return
		}
		h.logger.Warn("Failed to parse multipart form.", "error", err)
		writeJSON(w, http.StatusBadRequest, models.DetailResponse{Detail: "invalid multipart form: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		writeJSON(w, http.StatusUnprocessableEntity, models.DetailResponse{Detail: fileRequiredDetail})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.DetailResponse{Detail: "invalid file field: " + err.Error()})
		return
	}
	defer file.Close()

	resp, err := h.gateway.ProcessFile(r.Context(), header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ProcessURL handles POST /process-url/. The url is read from the query
// string, a JSON body or a form value, in that order.
func (h *Handler) ProcessURL(w http.ResponseWriter, r *http.Request) {
	url, err := readURL(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, models.DetailResponse{Detail: err.Error()})
		return
	}

	resp, err := h.gateway.ProcessURL(r.Context(), url)
	if err != nil {
		status, detail := classifyURLError(err)
		writeJSON(w, status, models.DetailResponse{Detail: detail})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errURLRequired = errors.New("url field is required")

func readURL(r *http.Request) (string, error) {
	if url := r.URL.Query().Get("url"); url != "" {
		return url, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req models.ProcessURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errors.New("request body must be a JSON object with a url field")
		}
		if req.URL == "" {
			return "", errURLRequired
		}
		return req.URL, nil
	}

	if url := r.FormValue("url"); url != "" {
		return url, nil
	}
	return "", errURLRequired
}

func classifyURLError(err error) (int, string) {
	var fetchErr *services.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadRequest, fetchErr.Error()
	}
	var storageErr *services.StorageError
	if errors.As(err, &storageErr) {
		return http.StatusInternalServerError, storageErr.Error()
	}
	return http.StatusInternalServerError, "Unexpected error: " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
