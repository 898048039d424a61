// Package ingest orchestrates the media pipeline: resolving remote clips,
// storing multi-quality renditions with thumbnails, publishing events, and
// tearing media back down.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/clipline/internal/clip"
	"github.com/your-org/clipline/internal/icon"
	"github.com/your-org/clipline/internal/metadata"
	"github.com/your-org/clipline/internal/metrics"
	"github.com/your-org/clipline/internal/purge"
	"github.com/your-org/clipline/internal/scratch"
	"github.com/your-org/clipline/internal/transcoder"
	"github.com/your-org/clipline/pkg/storage/objectstore"
)

// thumbFrameSecond is where poster frames are pulled from. Clips open on
// their action, so one second in avoids fade-in frames without risking a
// seek past the end of very short clips.
const thumbFrameSecond = 1

// IngestError wraps a pipeline stage failure.
type IngestError struct {
	Stage string
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// MetadataStore is the slice of persistence the pipeline needs.
type MetadataStore interface {
	CreatePlaceholderEvent(ctx context.Context, draft metadata.Draft) (int64, error)
	UpdateEventMedia(ctx context.Context, eventID int64, update metadata.MediaUpdate) error
	AddVideoVariant(ctx context.Context, v metadata.VideoVariant) (int64, error)
	DeleteEvent(ctx context.Context, eventID int64) error
	ListVariants(ctx context.Context, eventID int64) ([]metadata.VideoVariant, error)
}

// Prober resolves a clip reference to metadata without fetching media.
type Prober interface {
	Probe(ctx context.Context, clipRef string) (clip.ClipInfo, error)
}

// Downloader fetches every rendition of a clip into a scratch directory.
type Downloader interface {
	DownloadVariants(ctx context.Context, clipRef, clipID, destDir string) ([]string, error)
}

// FrameExtractor pulls poster frames and inspects local video files.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, destPath string) error
	Inspect(ctx context.Context, videoPath string) (transcoder.Probe, error)
}

// StoragePurger removes an event's storage footprint.
type StoragePurger interface {
	Purge(ctx context.Context, eventID int64) purge.Result
}

// Service wires the pipeline stages together.
type Service struct {
	store      MetadataStore
	objects    objectstore.Client
	prober     Prober
	downloader Downloader
	frames     FrameExtractor
	purger     StoragePurger
	producer   Publisher
	scratch    *scratch.Root
	logger     *zap.Logger
	locks      *eventLocks
}

type Params struct {
	Store      MetadataStore
	Objects    objectstore.Client
	Prober     Prober
	Downloader Downloader
	Frames     FrameExtractor
	Purger     StoragePurger
	Producer   Publisher
	Scratch    *scratch.Root
	Logger     *zap.Logger
}

// NewService constructs an ingestion Service.
func NewService(p Params) *Service {
	return &Service{
		store:      p.Store,
		objects:    p.Objects,
		prober:     p.Prober,
		downloader: p.Downloader,
		frames:     p.Frames,
		purger:     p.Purger,
		producer:   p.Producer,
		scratch:    p.Scratch,
		logger:     p.Logger,
		locks:      newEventLocks(),
	}
}

// CreateEventFromClip creates a placeholder event, runs the remote
// pipeline against it, and rolls both metadata and storage back if any
// stage fails.
func (s *Service) CreateEventFromClip(ctx context.Context, draft metadata.Draft, clipRef string) (int64, []metadata.VideoVariant, error) {
	saga := NewSaga()

	eventID, err := s.store.CreatePlaceholderEvent(ctx, draft)
	if err != nil {
		return 0, nil, &IngestError{Stage: "placeholder", Err: err}
	}
	saga.Register("placeholder event row", func(ctx context.Context) error {
		return s.store.DeleteEvent(ctx, eventID)
	})
	saga.Register("stored objects", func(ctx context.Context) error {
		if res := s.purger.Purge(ctx, eventID); res.Errors > 0 {
			return fmt.Errorf("%d objects could not be removed", res.Errors)
		}
		return nil
	})

	variants, err := s.IngestRemoteClip(ctx, clipRef, eventID)
	if err != nil {
		saga.Rollback(context.WithoutCancel(ctx), s.logger.With(zap.Int64("event_id", eventID)))
		return 0, nil, err
	}

	saga.Commit()
	return eventID, variants, nil
}

// CreateEventFromUpload is the manual-upload counterpart of
// CreateEventFromClip, with the same rollback behavior.
func (s *Service) CreateEventFromUpload(ctx context.Context, draft metadata.Draft, upload io.Reader, originalName string) (int64, metadata.VideoVariant, error) {
	saga := NewSaga()

	eventID, err := s.store.CreatePlaceholderEvent(ctx, draft)
	if err != nil {
		return 0, metadata.VideoVariant{}, &IngestError{Stage: "placeholder", Err: err}
	}
	saga.Register("placeholder event row", func(ctx context.Context) error {
		return s.store.DeleteEvent(ctx, eventID)
	})
	saga.Register("stored objects", func(ctx context.Context) error {
		if res := s.purger.Purge(ctx, eventID); res.Errors > 0 {
			return fmt.Errorf("%d objects could not be removed", res.Errors)
		}
		return nil
	})

	variant, err := s.IngestLocalFile(ctx, upload, originalName, eventID)
	if err != nil {
		saga.Rollback(context.WithoutCancel(ctx), s.logger.With(zap.Int64("event_id", eventID)))
		return 0, metadata.VideoVariant{}, err
	}

	saga.Commit()
	return eventID, variant, nil
}

// IngestRemoteClip resolves clipRef, downloads every rendition, uploads
// them with per-variant thumbnails, and commits the variant rows. The
// placeholder event must already exist.
func (s *Service) IngestRemoteClip(ctx context.Context, clipRef string, eventID int64) ([]metadata.VideoVariant, error) {
	unlock := s.locks.lock(eventID)
	defer unlock()

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.IngestsTotal.WithLabelValues("remote", outcome).Inc()
		metrics.IngestDuration.WithLabelValues("remote").Observe(time.Since(start).Seconds())
	}()

	logger := s.logger.With(zap.Int64("event_id", eventID), zap.String("clip_ref", clipRef))

	scratchDir, err := s.scratch.MkDir("ingest_clip_")
	if err != nil {
		return nil, &IngestError{Stage: "scratch", Err: err}
	}
	defer s.cleanupScratch(scratchDir)

	info, err := s.prober.Probe(ctx, clipRef)
	if err != nil {
		return nil, &IngestError{Stage: "probe", Err: err}
	}
	logger = logger.With(zap.String("clip_id", info.ID))
	logger.Debug("clip resolved",
		zap.Float64("duration_s", info.DurationSeconds),
		zap.String("thumbnail_hint", info.BestThumbnailURL()),
	)

	files, err := s.downloader.DownloadVariants(ctx, clipRef, info.ID, scratchDir)
	if err != nil {
		return nil, &IngestError{Stage: "download", Err: err}
	}

	var (
		variants        []metadata.VideoVariant
		bestThumbURL    string
		bestThumbHeight = -1
		storeFailures   int
	)

	for _, file := range files {
		name := filepath.Base(file)
		label := metadata.LabelForFilename(name)
		key := variantKey(eventID, normalizeMP4Name(name))

		size, err := fileSize(file)
		if err != nil {
			logger.Error("variant unreadable, skipping", zap.String("file", name), zap.Error(err))
			storeFailures++
			continue
		}

		if err := s.objects.PutFile(ctx, file, key, "video/mp4", objectstore.CacheForever); err != nil {
			logger.Error("variant upload failed, skipping", zap.String("key", key), zap.Error(err))
			storeFailures++
			continue
		}

		// Thumbnails are best-effort: a failed frame or upload never
		// costs us the variant.
		if thumbURL, ok := s.storeVariantThumb(ctx, logger, file, info.ID, label, eventID, scratchDir); ok {
			if h := metadata.QualityHeight(label); h > bestThumbHeight {
				bestThumbHeight = h
				bestThumbURL = thumbURL
			}
		}

		variants = append(variants, metadata.VideoVariant{
			EventID:      eventID,
			QualityLabel: label,
			MIME:         "video/mp4",
			FileSize:     size,
			DurationS:    info.DurationSeconds,
			StorageKey:   key,
			PublicURL:    s.objects.PublicURL(key),
		})
	}

	if len(variants) == 0 {
		return nil, &IngestError{
			Stage: "store",
			Err:   fmt.Errorf("no variant could be stored (%d uploads failed)", storeFailures),
		}
	}

	metadata.SortVariants(variants)

	update := metadata.MediaUpdate{
		VideoURL:        variants[0].PublicURL,
		ThumbnailURL:    bestThumbURL,
		OriginalClipURL: clipRef,
	}
	if err := s.store.UpdateEventMedia(ctx, eventID, update); err != nil {
		return nil, &IngestError{Stage: "commit", Err: err}
	}
	for i := range variants {
		id, err := s.store.AddVideoVariant(ctx, variants[i])
		if err != nil {
			return nil, &IngestError{Stage: "commit", Err: err}
		}
		variants[i].ID = id
	}

	outcome = "ok"
	metrics.VariantsStored.Add(float64(len(variants)))
	logger.Info("remote clip ingested",
		zap.Int("variants", len(variants)),
		zap.Int("upload_failures", storeFailures),
		zap.String("best_quality", variants[0].QualityLabel),
	)

	s.publishMediaEvent(ctx, MediaEvent{
		Type:     TypeMediaIngested,
		EventID:  eventID,
		Variants: len(variants),
	})
	return variants, nil
}

// IngestLocalFile stores one manually uploaded video under the event's
// canonical key, with a thumbnail when one can be extracted.
func (s *Service) IngestLocalFile(ctx context.Context, upload io.Reader, originalName string, eventID int64) (metadata.VideoVariant, error) {
	unlock := s.locks.lock(eventID)
	defer unlock()

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.IngestsTotal.WithLabelValues("local", outcome).Inc()
		metrics.IngestDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	}()

	logger := s.logger.With(zap.Int64("event_id", eventID), zap.String("upload", originalName))

	scratchDir, err := s.scratch.MkDir("ingest_upload_")
	if err != nil {
		return metadata.VideoVariant{}, &IngestError{Stage: "scratch", Err: err}
	}
	defer s.cleanupScratch(scratchDir)

	localPath := filepath.Join(scratchDir, "upload.mp4")
	size, err := saveUpload(localPath, upload)
	if err != nil {
		return metadata.VideoVariant{}, &IngestError{Stage: "save", Err: err}
	}

	// Inspection is soft: an unreadable container still publishes, it
	// just carries the fallback label and no duration.
	label := "source"
	duration := 0.0
	if probe, err := s.frames.Inspect(ctx, localPath); err != nil {
		logger.Warn("upload inspection failed", zap.Error(err))
	} else {
		if h := probe.Height(); h > 0 {
			label = fmt.Sprintf("%dp", h)
		}
		duration = probe.DurationSeconds()
	}

	key := variantKey(eventID, fmt.Sprintf("%d.mp4", eventID))
	if err := s.objects.PutFile(ctx, localPath, key, "video/mp4", objectstore.CacheForever); err != nil {
		return metadata.VideoVariant{}, &IngestError{Stage: "store", Err: err}
	}

	thumbURL := ""
	thumbPath := filepath.Join(scratchDir, "thumb.jpg")
	if err := s.frames.ExtractFrame(ctx, localPath, thumbFrameSecond, thumbPath); err != nil {
		logger.Warn("thumbnail extraction failed", zap.Error(err))
	} else {
		thumbKey := variantKey(eventID, "thumb.jpg")
		if err := s.objects.PutFile(ctx, thumbPath, thumbKey, "image/jpeg", objectstore.CacheForever); err != nil {
			logger.Warn("thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
		} else {
			thumbURL = s.objects.PublicURL(thumbKey)
		}
	}

	variant := metadata.VideoVariant{
		EventID:      eventID,
		QualityLabel: label,
		MIME:         "video/mp4",
		FileSize:     size,
		DurationS:    duration,
		StorageKey:   key,
		PublicURL:    s.objects.PublicURL(key),
	}

	update := metadata.MediaUpdate{
		VideoURL:     variant.PublicURL,
		ThumbnailURL: thumbURL,
	}
	if err := s.store.UpdateEventMedia(ctx, eventID, update); err != nil {
		return metadata.VideoVariant{}, &IngestError{Stage: "commit", Err: err}
	}
	id, err := s.store.AddVideoVariant(ctx, variant)
	if err != nil {
		return metadata.VideoVariant{}, &IngestError{Stage: "commit", Err: err}
	}
	variant.ID = id

	outcome = "ok"
	metrics.VariantsStored.Inc()
	logger.Info("local upload ingested",
		zap.String("quality", label),
		zap.Int64("size_bytes", size),
	)

	s.publishMediaEvent(ctx, MediaEvent{
		Type:     TypeMediaIngested,
		EventID:  eventID,
		Variants: 1,
	})
	return variant, nil
}

// UploadStreamerIcon validates and normalizes an uploaded icon, stores it
// under the streamer's fixed key, and returns the public URL. Re-uploads
// overwrite.
func (s *Service) UploadStreamerIcon(ctx context.Context, upload io.Reader, streamerID int64) (string, error) {
	scratchDir, err := s.scratch.MkDir("icon_")
	if err != nil {
		metrics.IconUploadsTotal.WithLabelValues("error").Inc()
		return "", &IngestError{Stage: "scratch", Err: err}
	}
	defer s.cleanupScratch(scratchDir)

	srcPath := filepath.Join(scratchDir, "upload.img")
	if _, err := saveUpload(srcPath, upload); err != nil {
		metrics.IconUploadsTotal.WithLabelValues("error").Inc()
		return "", &IngestError{Stage: "save", Err: err}
	}

	pngPath, err := icon.Process(srcPath, scratchDir)
	if err != nil {
		metrics.IconUploadsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	key := fmt.Sprintf("assets/icons/streamer_%d.png", streamerID)
	if err := s.objects.PutFile(ctx, pngPath, key, "image/png", objectstore.CacheForever); err != nil {
		metrics.IconUploadsTotal.WithLabelValues("error").Inc()
		return "", &IngestError{Stage: "store", Err: err}
	}

	metrics.IconUploadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("streamer icon stored", zap.Int64("streamer_id", streamerID), zap.String("key", key))
	return s.objects.PublicURL(key), nil
}

// DeleteEvent purges the event's storage footprint and then removes its
// row. Purge problems are reported in the result, never as an error.
func (s *Service) DeleteEvent(ctx context.Context, eventID int64) (purge.Result, error) {
	unlock := s.locks.lock(eventID)
	defer unlock()

	res := s.purger.Purge(ctx, eventID)

	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return res, err
	}

	s.publishMediaEvent(ctx, MediaEvent{
		Type:    TypeMediaPurged,
		EventID: eventID,
		Deleted: res.Deleted,
		Errors:  res.Errors,
	})
	return res, nil
}

// ListEventVariants returns an event's variants best rendition first.
func (s *Service) ListEventVariants(ctx context.Context, eventID int64) ([]metadata.VideoVariant, error) {
	return s.store.ListVariants(ctx, eventID)
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if closer, ok := s.producer.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.objects != nil {
		if err := s.objects.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// storeVariantThumb extracts and uploads the per-variant poster frame.
// The bool reports whether a public thumbnail URL exists.
func (s *Service) storeVariantThumb(ctx context.Context, logger *zap.Logger, videoPath, clipID, label string, eventID int64, scratchDir string) (string, bool) {
	thumbName := fmt.Sprintf("%s_thumb_%s.jpg", clipID, label)
	thumbPath := filepath.Join(scratchDir, thumbName)

	if err := s.frames.ExtractFrame(ctx, videoPath, thumbFrameSecond, thumbPath); err != nil {
		logger.Warn("thumbnail extraction failed", zap.String("quality", label), zap.Error(err))
		return "", false
	}

	thumbKey := variantKey(eventID, thumbName)
	if err := s.objects.PutFile(ctx, thumbPath, thumbKey, "image/jpeg", objectstore.CacheForever); err != nil {
		logger.Warn("thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
		return "", false
	}
	return s.objects.PublicURL(thumbKey), true
}

func (s *Service) cleanupScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("scratch cleanup failed", zap.String("dir", dir), zap.Error(err))
	}
}

func variantKey(eventID int64, filename string) string {
	return fmt.Sprintf("clips/%d/%s", eventID, filename)
}

// normalizeMP4Name rewrites a variant filename's extension to .mp4. The
// downloader already remuxes containers; this keeps keys consistent for
// the odd extractor that reports another extension.
func normalizeMP4Name(name string) string {
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".mp4") {
		return name
	}
	return strings.TrimSuffix(name, ext) + ".mp4"
}

func saveUpload(destPath string, r io.Reader) (int64, error) {
	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write upload file: %w", err)
	}
	if n == 0 {
		return 0, errors.New("uploaded file is empty")
	}
	return n, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
