package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/clipline/internal/clip"
	"github.com/your-org/clipline/internal/metadata"
	"github.com/your-org/clipline/internal/purge"
	"github.com/your-org/clipline/internal/transcoder"
)

const (
	testMaxSizeBytes = int64(64 << 20)
	testFormMemBytes = int64(1 << 20)
)

func newHTTPHarness(t *testing.T) (*harness, http.Handler) {
	t.Helper()
	h := newHarness(t)
	handler := NewHTTPHandler(h.svc, zap.NewNop(), testMaxSizeBytes, testFormMemBytes)
	return h, handler.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func draftFields() map[string]string {
	return map[string]string{
		"title":      "Finale clutch",
		"body":       "That one round.",
		"slug":       "finale-clutch",
		"event_date": "2026-03-01",
	}
}

func draftJSON() map[string]any {
	return map[string]any{
		"title":      "Finale clutch",
		"body":       "That one round.",
		"slug":       "finale-clutch",
		"event_date": "2026-03-01",
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newHTTPHarness(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestIngestEndpointCreatesEvent(t *testing.T) {
	h, router := newHTTPHarness(t)

	payload := draftJSON()
	payload["clip_url"] = "https://clips.twitch.tv/finale-clutch"
	rec := doJSON(t, router, http.MethodPost, "/api/v1/events/ingest", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.NotEmpty(t, body["video_url"])
	require.Len(t, body["variants"], 2)

	eventID := int64(body["event_id"].(float64))
	event, err := h.store.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Equal(t, "finale-clutch", event.Slug)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), event.CreatedAt)
}

func TestIngestEndpointValidatesDraft(t *testing.T) {
	_, router := newHTTPHarness(t)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		status  int
		message string
	}{
		{"missing title", func(p map[string]any) { p["title"] = " " }, http.StatusUnprocessableEntity, "title is required"},
		{"missing body", func(p map[string]any) { p["body"] = "" }, http.StatusUnprocessableEntity, "body is required"},
		{"missing slug", func(p map[string]any) { p["slug"] = "" }, http.StatusUnprocessableEntity, "slug is required"},
		{"bad date", func(p map[string]any) { p["event_date"] = "March 1st" }, http.StatusUnprocessableEntity, "event_date must be YYYY-MM-DD"},
		{"missing clip url", func(p map[string]any) { delete(p, "clip_url") }, http.StatusUnprocessableEntity, "clip_url is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := draftJSON()
			payload["clip_url"] = "https://clips.twitch.tv/x"
			tc.mutate(payload)

			rec := doJSON(t, router, http.MethodPost, "/api/v1/events/ingest", payload)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.message, decodeBody(t, rec)["error"])
		})
	}
}

func TestIngestEndpointRejectsInvalidJSON(t *testing.T) {
	_, router := newHTTPHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/ingest", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndpointMapsPipelineErrors(t *testing.T) {
	t.Run("probe failure maps to 422", func(t *testing.T) {
		h, router := newHTTPHarness(t)
		h.prober.err = &clip.ProbeError{Ref: "gone", Err: errors.New("no playable media")}
		payload := draftJSON()
		payload["clip_url"] = "https://clips.twitch.tv/gone"

		rec := doJSON(t, router, http.MethodPost, "/api/v1/events/ingest", payload)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("download failure maps to 502", func(t *testing.T) {
		h, router := newHTTPHarness(t)
		h.down.err = &clip.DownloadError{Ref: "flaky", Err: errors.New("exit status 1")}
		payload := draftJSON()
		payload["clip_url"] = "https://clips.twitch.tv/flaky"

		rec := doJSON(t, router, http.MethodPost, "/api/v1/events/ingest", payload)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestUploadEndpointCreatesEvent(t *testing.T) {
	h, router := newHTTPHarness(t)
	h.frames.probe = transcoder.Probe{
		Streams: []transcoder.Stream{{CodecType: "video", Height: 720}},
		Format:  transcoder.Format{Duration: "18.4"},
	}

	body, contentType := multipartBody(t, draftFields(), "file", "raw.mp4", []byte("uploaded video bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody(t, rec)
	require.Equal(t, "720p", resp["quality"])
	require.NotEmpty(t, resp["video_url"])

	eventID := int64(resp["event_id"].(float64))
	require.Len(t, livePrefixKeys(t, h.objects, eventID), 2)
}

func TestUploadEndpointRequiresFile(t *testing.T) {
	_, router := newHTTPHarness(t)

	body, contentType := multipartBody(t, draftFields(), "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "file field is required", decodeBody(t, rec)["error"])
}

func TestUploadEndpointValidatesDraft(t *testing.T) {
	_, router := newHTTPHarness(t)

	fields := draftFields()
	fields["title"] = ""
	body, contentType := multipartBody(t, fields, "file", "raw.mp4", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteEndpointReportsCounts(t *testing.T) {
	h, router := newHTTPHarness(t)

	eventID, _, err := h.svc.CreateEventFromClip(context.Background(), testDraft(), "ref")
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/events/%d", eventID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Greater(t, body["deleted"], float64(0))
	require.Equal(t, float64(0), body["errors"])
	require.NotContains(t, body, "warning")
}

func TestDeleteEndpointUnknownEvent(t *testing.T) {
	_, router := newHTTPHarness(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/events/4242", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/events/not-a-number", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubPurger struct {
	res purge.Result
}

func (s *stubPurger) Purge(ctx context.Context, eventID int64) purge.Result {
	return s.res
}

func TestDeleteEndpointWarnsOnPurgeErrors(t *testing.T) {
	h := newHarness(t)
	params := h.params()
	params.Purger = &stubPurger{res: purge.Result{Deleted: 3, Errors: 2}}
	router := NewHTTPHandler(NewService(params), zap.NewNop(), testMaxSizeBytes, testFormMemBytes).Router()

	eventID, err := h.store.CreatePlaceholderEvent(context.Background(), testDraft())
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/events/%d", eventID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, float64(3), body["deleted"])
	require.Equal(t, float64(2), body["errors"])
	require.NotEmpty(t, body["warning"])
}

func TestIconEndpoint(t *testing.T) {
	t.Run("valid icon stored", func(t *testing.T) {
		h, router := newHTTPHarness(t)

		body, contentType := multipartBody(t, nil, "icon", "icon.png", pngIcon(t, 64, 64))
		req := httptest.NewRequest(http.MethodPut, "/api/v1/streamers/9/icon", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody(t, rec)
		require.Equal(t, h.objects.PublicURL("assets/icons/streamer_9.png"), resp["icon_url"])
	})

	t.Run("non-square icon rejected", func(t *testing.T) {
		_, router := newHTTPHarness(t)

		body, contentType := multipartBody(t, nil, "icon", "icon.png", pngIcon(t, 100, 50))
		req := httptest.NewRequest(http.MethodPut, "/api/v1/streamers/9/icon", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Contains(t, decodeBody(t, rec)["error"], "square")
	})

	t.Run("garbage upload rejected", func(t *testing.T) {
		_, router := newHTTPHarness(t)

		body, contentType := multipartBody(t, nil, "icon", "icon.png", []byte("definitely not an image"))
		req := httptest.NewRequest(http.MethodPut, "/api/v1/streamers/9/icon", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("invalid streamer id", func(t *testing.T) {
		_, router := newHTTPHarness(t)

		body, contentType := multipartBody(t, nil, "icon", "icon.png", pngIcon(t, 64, 64))
		req := httptest.NewRequest(http.MethodPut, "/api/v1/streamers/zero/icon", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func metadataVariant(eventID int64, label string) metadata.VideoVariant {
	return metadata.VideoVariant{
		EventID:      eventID,
		QualityLabel: label,
		MIME:         "video/mp4",
		FileSize:     10,
		StorageKey:   fmt.Sprintf("clips/%d/%s.mp4", eventID, label),
		PublicURL:    fmt.Sprintf("http://cdn.test/media/clips/%d/%s.mp4", eventID, label),
	}
}

func TestVariantsEndpointOrdersBestFirst(t *testing.T) {
	h, router := newHTTPHarness(t)
	ctx := context.Background()

	eventID, err := h.store.CreatePlaceholderEvent(ctx, testDraft())
	require.NoError(t, err)
	for _, label := range []string{"360p", "1080p", "best"} {
		_, err := h.store.AddVideoVariant(ctx, metadataVariant(eventID, label))
		require.NoError(t, err)
	}

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/events/%d/variants", eventID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	variants := body["variants"].([]any)
	require.Len(t, variants, 3)

	var got []string
	for _, v := range variants {
		got = append(got, v.(map[string]any)["quality"].(string))
	}
	require.Equal(t, []string{"1080p", "360p", "best"}, got)
}
