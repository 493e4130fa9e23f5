package submission

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pechabench/platform/pkg/challenge"
	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/models"
	"github.com/pechabench/platform/pkg/upload"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/submissions", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/submissions/{id}/progress", h.handleProgress).Methods(http.MethodGet)
	router.HandleFunc("/monitoring/cache", h.handleCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/monitoring/queue", h.handleQueueStats).Methods(http.MethodGet)
	router.HandleFunc("/monitoring/active", h.handleActive).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "prediction file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read prediction file", http.StatusBadRequest)
		return
	}

	priority := 0
	if p := r.FormValue("priority"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			priority = parsed
		}
	}

	req := models.SubmissionRequest{
		UserID:      r.FormValue("user_id"),
		ModelID:     r.FormValue("model_id"),
		ChallengeID: r.FormValue("challenge_id"),
		Description: r.FormValue("description"),
		Filename:    header.Filename,
		FileContent: content,
		Priority:    priority,
	}

	accepted, err := h.service.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest) || upload.IsValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, challenge.ErrNotFound):
			http.Error(w, "challenge not found", http.StatusNotFound)
		case errors.Is(err, ErrQueueUnavailable) || errors.Is(err, ErrDuplicateTask):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logger.Log.WithError(err).Error("Failed to accept submission")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(accepted)
}

func (h *HTTPHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	entry, err := h.service.Progress(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrNotFound):
			http.Error(w, "submission not found", http.StatusNotFound)
		default:
			logger.Log.WithError(err).Error("Failed to fetch submission progress")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *HTTPHandler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.CacheStats())
}

func (h *HTTPHandler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.QueueStats())
}

func (h *HTTPHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.ActiveSubmissions())
}
