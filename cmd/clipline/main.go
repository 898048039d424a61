package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/clipline/internal/clip"
	"github.com/your-org/clipline/internal/ingest"
	"github.com/your-org/clipline/internal/metadata"
	"github.com/your-org/clipline/internal/purge"
	"github.com/your-org/clipline/internal/scratch"
	"github.com/your-org/clipline/internal/transcoder"
	"github.com/your-org/clipline/pkg/config"
	"github.com/your-org/clipline/pkg/kafka"
	"github.com/your-org/clipline/pkg/logger"
	"github.com/your-org/clipline/pkg/storage/objectstore"
	"github.com/your-org/clipline/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	objects, err := objectstore.New(objectstore.Config{
		Provider:      cfg.Storage.Provider,
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		Bucket:        cfg.Storage.Bucket,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}

	store, err := metadata.Open(cfg.Database.Path)
	if err != nil {
		logr.Fatal("open metadata store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck
	if err := store.Migrate(ctx); err != nil {
		logr.Fatal("migrate metadata store", zap.Error(err))
	}

	scratchRoot, err := scratch.NewRoot(cfg.App.ScratchDir)
	if err != nil {
		logr.Fatal("init scratch root", zap.Error(err))
	}
	defer scratchRoot.Close() //nolint:errcheck

	prober, err := clip.New(clip.Config{
		Binary:          cfg.Tools.YtDlpPath,
		FFmpegPath:      cfg.Tools.FFmpegPath,
		ProbeTimeout:    cfg.Tools.ProbeTimeout,
		DownloadTimeout: cfg.Tools.DownloadTimeout,
	}, logr)
	if err != nil {
		logr.Fatal("init clip client", zap.Error(err))
	}

	frames, err := transcoder.New(transcoder.Config{
		FFmpegBinary:  cfg.Tools.FFmpegPath,
		FFprobeBinary: cfg.Tools.FFprobePath,
		FrameTimeout:  cfg.Tools.FrameTimeout,
	}, logr)
	if err != nil {
		logr.Fatal("init transcoder client", zap.Error(err))
	}

	params := ingest.Params{
		Store:      store,
		Objects:    objects,
		Prober:     prober,
		Downloader: prober,
		Frames:     frames,
		Purger:     purge.New(objects, store, logr),
		Scratch:    scratchRoot,
		Logger:     logr,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		params.Producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.MediaTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			RetryBackoff: cfg.Kafka.RetryBackoff,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
	}

	service := ingest.NewService(params)

	handler := ingest.NewHTTPHandler(service, logr, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	go func() {
		logr.Info("metrics server starting", zap.String("addr", cfg.Metrics.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logr.Error("metrics server shutdown failed", zap.Error(err))
		}
		if err := service.Close(shutdownCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("clipline service starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

func parseResourceAttributes(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	attrs := map[string]string{}
	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
