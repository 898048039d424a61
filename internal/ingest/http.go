package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/clipline/internal/clip"
	"github.com/your-org/clipline/internal/icon"
	"github.com/your-org/clipline/internal/metadata"
)

// requestTimeout bounds every handler. It must outlast the download
// budget; ingestion handlers additionally detach from request
// cancellation so a dropped connection never aborts a running pipeline.
const requestTimeout = 15 * time.Minute

// HTTPHandler exposes REST endpoints for the ingestion service.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	maxSizeBytes int64
	formMemBytes int64
	router       chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxSizeBytes, formMemBytes int64) *HTTPHandler {
	h := &HTTPHandler{
		service:      service,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		formMemBytes: formMemBytes,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/v1/events/ingest", h.handleIngestClip)
	r.Post("/api/v1/events/upload", h.handleUploadVideo)
	r.Delete("/api/v1/events/{eventID}", h.handleDeleteEvent)
	r.Get("/api/v1/events/{eventID}/variants", h.handleListVariants)
	r.Put("/api/v1/streamers/{streamerID}/icon", h.handleUploadIcon)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type ingestClipRequest struct {
	draftForm
	ClipURL string `json:"clip_url"`
}

func (h *HTTPHandler) handleIngestClip(w http.ResponseWriter, r *http.Request) {
	var req ingestClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	draft, err := req.draft()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if strings.TrimSpace(req.ClipURL) == "" {
		writeError(w, http.StatusUnprocessableEntity, "clip_url is required")
		return
	}

	// Detached: once the pipeline starts it runs to completion even if
	// the admin disconnects.
	ctx := context.WithoutCancel(r.Context())
	eventID, variants, err := h.service.CreateEventFromClip(ctx, draft, req.ClipURL)
	if err != nil {
		h.logger.Error("clip ingestion failed", zap.String("clip_url", req.ClipURL), zap.Error(err))
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"event_id":  eventID,
		"video_url": variants[0].PublicURL,
		"variants":  variantPayloads(variants),
	})
}

func (h *HTTPHandler) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds max size limit")
		return
	}

	draft, err := draftFromForm(r).draft()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	eventID, variant, err := h.service.CreateEventFromUpload(ctx, draft, file, header.Filename)
	if err != nil {
		h.logger.Error("video upload failed", zap.String("filename", header.Filename), zap.Error(err))
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"event_id":   eventID,
		"video_url":  variant.PublicURL,
		"quality":    variant.QualityLabel,
		"size_bytes": variant.FileSize,
		"duration_s": variant.DurationS,
	})
}

func (h *HTTPHandler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	res, err := h.service.DeleteEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error("event deletion failed", zap.Int64("event_id", eventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event deletion failed")
		return
	}

	payload := map[string]any{
		"event_id": eventID,
		"deleted":  res.Deleted,
		"errors":   res.Errors,
	}
	if res.Errors > 0 {
		payload["warning"] = "some stored objects could not be removed; re-run the purge"
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *HTTPHandler) handleListVariants(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}

	variants, err := h.service.ListEventVariants(r.Context(), eventID)
	if err != nil {
		h.logger.Error("variant listing failed", zap.Int64("event_id", eventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "variant listing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"variants": variantPayloads(variants),
	})
}

func (h *HTTPHandler) handleUploadIcon(w http.ResponseWriter, r *http.Request) {
	streamerID, ok := pathID(w, r, "streamerID")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("icon")
	if err != nil {
		writeError(w, http.StatusBadRequest, "icon field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds max size limit")
		return
	}

	iconURL, err := h.service.UploadStreamerIcon(r.Context(), file, streamerID)
	if err != nil {
		var verr *icon.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Msg)
			return
		}
		h.logger.Error("icon upload failed", zap.Int64("streamer_id", streamerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "icon upload failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"streamer_id": streamerID,
		"icon_url":    iconURL,
	})
}

// draftForm carries the admin-entered event fields shared by the JSON and
// multipart entry points.
type draftForm struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Slug      string `json:"slug"`
	EventDate string `json:"event_date"`
}

func draftFromForm(r *http.Request) draftForm {
	return draftForm{
		Title:     r.FormValue("title"),
		Body:      r.FormValue("body"),
		Slug:      r.FormValue("slug"),
		EventDate: r.FormValue("event_date"),
	}
}

func (f draftForm) draft() (metadata.Draft, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return metadata.Draft{}, errors.New("title is required")
	}
	if strings.TrimSpace(f.Body) == "" {
		return metadata.Draft{}, errors.New("body is required")
	}
	slug := strings.TrimSpace(f.Slug)
	if slug == "" {
		return metadata.Draft{}, errors.New("slug is required")
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(f.EventDate))
	if err != nil {
		return metadata.Draft{}, errors.New("event_date must be YYYY-MM-DD")
	}

	return metadata.Draft{
		Slug:      slug,
		Title:     title,
		Body:      f.Body,
		EventDate: date,
	}, nil
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id in path")
		return 0, false
	}
	return id, true
}

func writeIngestError(w http.ResponseWriter, err error) {
	var probeErr *clip.ProbeError
	var downloadErr *clip.DownloadError
	switch {
	case errors.As(err, &probeErr):
		writeError(w, http.StatusUnprocessableEntity, "clip reference could not be resolved")
	case errors.As(err, &downloadErr):
		writeError(w, http.StatusBadGateway, "clip download failed")
	default:
		writeError(w, http.StatusInternalServerError, "ingestion failed")
	}
}

func variantPayloads(variants []metadata.VideoVariant) []map[string]any {
	out := make([]map[string]any, 0, len(variants))
	for _, v := range variants {
		out = append(out, map[string]any{
			"id":          v.ID,
			"quality":     v.QualityLabel,
			"mime":        v.MIME,
			"size_bytes":  v.FileSize,
			"duration_s":  v.DurationS,
			"storage_key": v.StorageKey,
			"public_url":  v.PublicURL,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
