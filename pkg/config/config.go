package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the clipline service.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Metrics  MetricsConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Kafka    KafkaConfig
	Tools    ToolsConfig
	Upload   UploadConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"clipline"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	// ScratchDir is the root for per-ingestion working directories.
	// Empty means the system temp directory.
	ScratchDir string `env:"APP_SCRATCH_DIR"`
}

// HTTPConfig tunes the admin API server. Read and write timeouts must
// cover a full multipart video upload and a full remote clip download
// respectively.
type HTTPConfig struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15m"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR" envDefault:":9102"`
}

type DatabaseConfig struct {
	Path string `env:"DB_PATH" envDefault:"clipline.db"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"clipline-media"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	// PublicBaseURL is the externally reachable prefix joined with object
	// keys to form the URLs written into event rows.
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"http://localhost:9000/clipline-media"`
}

// KafkaConfig controls lifecycle event publication. An empty broker list
// disables publishing entirely.
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	MediaTopic       string        `env:"KAFKA_MEDIA_TOPIC" envDefault:"clipline.media"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	RetryBackoff     time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"500ms"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

// ToolsConfig locates the external binaries the pipeline shells out to.
type ToolsConfig struct {
	YtDlpPath       string        `env:"TOOLS_YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath      string        `env:"TOOLS_FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath     string        `env:"TOOLS_FFPROBE_PATH" envDefault:"ffprobe"`
	ProbeTimeout    time.Duration `env:"TOOLS_PROBE_TIMEOUT" envDefault:"30s"`
	DownloadTimeout time.Duration `env:"TOOLS_DOWNLOAD_TIMEOUT" envDefault:"10m"`
	FrameTimeout    time.Duration `env:"TOOLS_FRAME_TIMEOUT" envDefault:"30s"`
}

type UploadConfig struct {
	MaxSizeBytes      int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"2147483648"`
	MultipartMemBytes int64 `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"52428800"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=clipline"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
