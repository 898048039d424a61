// Package transcoder shells out to ffmpeg and ffprobe for the two jobs
// the pipeline needs: pulling a poster frame out of a video and reading
// its dimensions and duration.
package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ThumbnailError reports a failed frame extraction. Callers treat it as
// best-effort and never abort ingestion over it.
type ThumbnailError struct {
	Video string
	Err   error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("extract frame from %s: %v", e.Video, e.Err)
}

func (e *ThumbnailError) Unwrap() error {
	return e.Err
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Config locates the binaries and bounds frame extraction time.
type Config struct {
	FFmpegBinary  string
	FFprobeBinary string
	FrameTimeout  time.Duration
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

// Client wraps ffmpeg and ffprobe CLI interactions.
type Client struct {
	ffmpeg       string
	ffprobe      string
	frameTimeout time.Duration
	exec         Executor
	logger       *zap.Logger
}

// New constructs a transcoder client.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	ffmpeg := strings.TrimSpace(cfg.FFmpegBinary)
	ffprobe := strings.TrimSpace(cfg.FFprobeBinary)
	if ffmpeg == "" || ffprobe == "" {
		return nil, errors.New("ffmpeg and ffprobe binaries required")
	}
	client := &Client{
		ffmpeg:       ffmpeg,
		ffprobe:      ffprobe,
		frameTimeout: cfg.FrameTimeout,
		exec:         commandExecutor{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ExtractFrame writes a single high-quality JPEG frame from atSeconds
// into destPath.
func (c *Client) ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, destPath string) error {
	frameCtx := ctx
	if c.frameTimeout > 0 {
		var cancel context.CancelFunc
		frameCtx, cancel = context.WithTimeout(ctx, c.frameTimeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(atSeconds, 'f', -1, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		destPath,
	}
	if _, err := c.exec.Run(frameCtx, c.ffmpeg, args); err != nil {
		return &ThumbnailError{Video: videoPath, Err: err}
	}

	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		return &ThumbnailError{Video: videoPath, Err: errors.New("ffmpeg produced no frame")}
	}

	c.logger.Debug("extracted frame",
		zap.String("video", videoPath),
		zap.String("frame", destPath),
	)
	return nil
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Probe represents the parsed output from an ffprobe inspection.
type Probe struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Height returns the first video stream's pixel height, or 0 when the
// container has no video stream.
func (p Probe) Height() int {
	for _, stream := range p.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream.Height
		}
	}
	return 0
}

// DurationSeconds returns the container duration, falling back to the
// first video stream when the container does not report one.
func (p Probe) DurationSeconds() float64 {
	if d := parseFloat(p.Format.Duration); d > 0 {
		return d
	}
	for _, stream := range p.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return parseFloat(stream.Duration)
		}
	}
	return 0
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func (c *Client) Inspect(ctx context.Context, videoPath string) (Probe, error) {
	args := []string{
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", videoPath,
	}
	out, err := c.exec.Run(ctx, c.ffprobe, args)
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var probe Probe
	if err := json.Unmarshal(out, &probe); err != nil {
		return Probe{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return probe, nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return parsed
}
