// Package clip wraps the external downloader used to resolve and fetch
// remote clips. All media bytes flow through the tool; this package only
// orchestrates it.
package clip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clip hosts lock their APIs to browser-looking traffic, so probing and
// downloading both present the public web client.
const (
	twitchReferer  = "https://www.twitch.tv/"
	browserAgent   = "Mozilla/5.0"
	twitchClientID = "kimne78kx3ncx6brgo4mv6wki5h1ko"
)

// Config locates the downloader binary and bounds its runtime.
type Config struct {
	Binary          string
	FFmpegPath      string
	ProbeTimeout    time.Duration
	DownloadTimeout time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	ffmpegPath      string
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	exec            Executor
	logger          *zap.Logger
}

// New constructs a downloader client.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		return nil, errors.New("downloader binary required")
	}
	client := &Client{
		binary:          binary,
		ffmpegPath:      strings.TrimSpace(cfg.FFmpegPath),
		probeTimeout:    cfg.ProbeTimeout,
		downloadTimeout: cfg.DownloadTimeout,
		exec:            commandExecutor{},
		logger:          logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Thumbnail is one still the clip host offers for a clip.
type Thumbnail struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
}

// ClipInfo is the probe result for a remote clip reference.
type ClipInfo struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	DurationSeconds float64     `json:"duration"`
	ThumbnailURL    string      `json:"thumbnail"`
	Thumbnails      []Thumbnail `json:"thumbnails"`
}

// BestThumbnailURL prefers the extractor's direct hint and otherwise picks
// the tallest candidate.
func (c ClipInfo) BestThumbnailURL() string {
	if c.ThumbnailURL != "" {
		return c.ThumbnailURL
	}
	best := ""
	bestHeight := -1
	for _, t := range c.Thumbnails {
		if t.URL == "" {
			continue
		}
		if t.Height > bestHeight {
			best = t.URL
			bestHeight = t.Height
		}
	}
	return best
}

// Probe resolves a clip reference to its metadata without downloading any
// media bytes.
func (c *Client) Probe(ctx context.Context, clipRef string) (ClipInfo, error) {
	if strings.TrimSpace(clipRef) == "" {
		return ClipInfo{}, &ProbeError{Ref: clipRef, Err: errors.New("empty clip reference")}
	}

	probeCtx := ctx
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	args := append(identityArgs(), "--dump-single-json", "--skip-download", clipRef)

	c.logger.Debug("probing clip", zap.String("clip_ref", clipRef))
	out, err := c.exec.Run(probeCtx, c.binary, args)
	if err != nil {
		return ClipInfo{}, &ProbeError{Ref: clipRef, Err: err}
	}

	var info ClipInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return ClipInfo{}, &ProbeError{Ref: clipRef, Err: fmt.Errorf("parse probe output: %w", err)}
	}
	if info.ID == "" {
		// Some extractors omit the id; storage keys still need one.
		info.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	c.logger.Debug("probe complete",
		zap.String("clip_ref", clipRef),
		zap.String("clip_id", info.ID),
		zap.Float64("duration_s", info.DurationSeconds),
	)
	return info, nil
}

// DownloadVariants fetches every distinct rendition of the clip into
// destDir, one MP4 per rendition named <clipID>_<height>p.<ext>. It
// returns the usable file paths sorted by name.
func (c *Client) DownloadVariants(ctx context.Context, clipRef, clipID, destDir string) ([]string, error) {
	if destDir == "" {
		return nil, &DownloadError{Ref: clipRef, Err: errors.New("destination directory required")}
	}

	dlCtx := ctx
	if c.downloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()
	}

	template := filepath.Join(destDir, clipID+"_%(height)sp.%(ext)s")
	args := append(identityArgs(),
		"-f", "all[height>0]/b",
		"--merge-output-format", "mp4",
		"--recode-video", "mp4",
		"--no-overwrites",
		"-o", template,
	)
	if c.ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", c.ffmpegPath)
	}
	args = append(args, clipRef)

	c.logger.Debug("downloading clip variants",
		zap.String("clip_ref", clipRef),
		zap.String("clip_id", clipID),
	)
	if _, err := c.exec.Run(dlCtx, c.binary, args); err != nil {
		return nil, &DownloadError{Ref: clipRef, Err: err}
	}

	files, err := collectVariantFiles(destDir, clipID)
	if err != nil {
		return nil, &DownloadError{Ref: clipRef, Err: err}
	}
	if len(files) == 0 {
		return nil, &DownloadError{Ref: clipRef, Err: errors.New("downloader produced no usable files")}
	}

	c.logger.Debug("download complete",
		zap.String("clip_id", clipID),
		zap.Int("variant_files", len(files)),
	)
	return files, nil
}

// identityArgs are shared by probe and download so both present the same
// client to the clip host.
func identityArgs() []string {
	return []string{
		"--referer", twitchReferer,
		"--user-agent", browserAgent,
		"--extractor-args", "twitch:client_id=" + twitchClientID,
	}
}

// collectVariantFiles gathers finished downloads for clipID, discarding
// partial artifacts and empty files.
func collectVariantFiles(dir, clipID string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("inspect download outputs: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, clipID+"_") {
			continue
		}
		if isPartialArtifact(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func isPartialArtifact(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".part") ||
		strings.HasSuffix(lower, ".download") ||
		strings.HasSuffix(lower, ".ytdl") ||
		strings.HasSuffix(lower, ".tmp")
}
