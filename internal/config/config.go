package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve in minimal containers

	"github.com/ilyakaznacheev/cleanenv"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string `env:"DB_HOST"`
	Port               string `env:"DB_PORT" env-default:"5432"`
	User               string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME"`
	SSLMode            string `env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC" env-default:"300"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint      string        `env:"MINIO_ENDPOINT"`
	AccessKey     string        `env:"MINIO_ACCESS_KEY"`
	SecretKey     string        `env:"MINIO_SECRET_KEY"`
	Bucket        string        `env:"MINIO_BUCKET" env-default:"documents"`
	UseSSL        bool          `env:"MINIO_USE_SSL" env-default:"false"`
	PresignExpiry time.Duration `env:"MINIO_PRESIGN_EXPIRY" env-default:"15m"`
}

// RedisConfig is only used when the ledger lock driver is "redis".
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// LockConfig controls how version assignment is serialized per logical name.
type LockConfig struct {
	Driver string        `env:"LOCK_DRIVER" env-default:"local"`
	TTL    time.Duration `env:"LOCK_TTL" env-default:"10s"`
	Wait   time.Duration `env:"LOCK_WAIT" env-default:"5s"`
}

// PreviewConfig holds rendering limits and external tool locations.
type PreviewConfig struct {
	Timeout        time.Duration `env:"PREVIEW_TIMEOUT" env-default:"30s"`
	MaxConcurrency int64         `env:"CONVERT_MAX_CONCURRENCY" env-default:"4"`
	PdftoppmBin    string        `env:"PDFTOPPM_BIN" env-default:"pdftoppm"`
	SofficeBin     string        `env:"SOFFICE_BIN" env-default:"soffice"`
	RasterDPI      int           `env:"PDF_RASTER_DPI" env-default:"110"`
	MaxInputPixels int           `env:"PREVIEW_MAX_PIXELS" env-default:"50000000"`
	TempRoot       string        `env:"TEMP_ROOT"`
	SweepSchedule  string        `env:"TEMP_SWEEP_SCHEDULE" env-default:"@every 15m"`
	SweepAge       time.Duration `env:"TEMP_SWEEP_AGE" env-default:"1h"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string `env:"APP_HOST" env-default:"localhost:8080"`
	Port           string `env:"PORT" env-default:"8080"`
	TimeZone       string `env:"APP_TIMEZONE" env-default:"UTC"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" env-default:"52428800"`
	CatalogDriver  string `env:"CATALOG_DRIVER" env-default:"postgres"`
	BlobDriver     string `env:"BLOB_DRIVER" env-default:"minio"`

	Database DatabaseConfig
	MinIO    MinIOConfig
	Redis    RedisConfig
	Lock     LockConfig
	Preview  PreviewConfig
	Log      LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return &cfg, nil
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
