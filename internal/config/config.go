package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	S3         S3Config
	Log        LogConfig
	CORS       CORSConfig
	Extraction ExtractionConfig
	Entity     EntityConfig
	OCR        OCRConfig
	Batch      BatchConfig
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	Environment   string        `mapstructure:"environment"`
	MaxUploadSize int64         `mapstructure:"max_upload_mb"`
}

// DBConfig holds database connection settings. Driver is "pgx" or "sqlite".
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
	// AutoMigrate applies embedded migrations at server start.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (d *DBConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Supported database drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// S3Config holds AWS S3 settings for result uploads.
type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExtractionConfig holds matching and scoring settings.
type ExtractionConfig struct {
	Threshold         float64       `mapstructure:"threshold"`
	AdaptiveCap       int           `mapstructure:"adaptive_cap"`
	Workers           int           `mapstructure:"workers"`
	RegexTimeout      time.Duration `mapstructure:"regex_timeout"`
	Fuzzy             bool          `mapstructure:"fuzzy"`
	MaxEditDistance   int           `mapstructure:"max_edit_distance"`
	ValueWindow       int           `mapstructure:"value_window"`
	LowWordConfidence float64       `mapstructure:"low_word_confidence"`
	PatternCacheSize  int           `mapstructure:"pattern_cache_size"`
	ProfilesDir       string        `mapstructure:"profiles_dir"`
	DefaultProfile    string        `mapstructure:"default_profile"`
}

// EntityConfig selects the entity recognizer. Recognizer is "rules", "http" or "none".
type EntityConfig struct {
	Recognizer string        `mapstructure:"recognizer"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OCRConfig holds OCR engine settings. Engines are tried in order.
type OCRConfig struct {
	Engines       []string      `mapstructure:"engines"`
	Language      string        `mapstructure:"language"`
	PageSegMode   int           `mapstructure:"psm"`
	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteAPIKey  string        `mapstructure:"remote_api_key"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

// BatchConfig holds batch CLI settings.
type BatchConfig struct {
	Concurrency int      `mapstructure:"concurrency"`
	Extensions  []string `mapstructure:"extensions"`
	Recursive   bool     `mapstructure:"recursive"`
	OutputDir   string   `mapstructure:"output_dir"`
	WriteRaw    bool     `mapstructure:"write_raw"`
	WriteJSON   bool     `mapstructure:"write_json"`
	WriteXLSX   bool     `mapstructure:"write_xlsx"`
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	e := c.Extraction
	if e.Threshold < 0 || e.Threshold > 100 {
		return fmt.Errorf("extraction.threshold %.2f out of range 0..100", e.Threshold)
	}
	if e.AdaptiveCap < 1 || e.AdaptiveCap > 50 {
		return fmt.Errorf("extraction.adaptive_cap %d out of range 1..50", e.AdaptiveCap)
	}
	if e.Workers < 1 || e.Workers > 64 {
		return fmt.Errorf("extraction.workers %d out of range 1..64", e.Workers)
	}
	if e.RegexTimeout <= 0 {
		return fmt.Errorf("extraction.regex_timeout must be positive")
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("db.driver %q not supported", c.DB.Driver)
	}
	switch c.Entity.Recognizer {
	case "rules", "http", "none":
	default:
		return fmt.Errorf("entity.recognizer %q not supported", c.Entity.Recognizer)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1")
	}
	return nil
}

// Load reads configuration from environment variables with the DOCFIELDS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCFIELDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 20)

	// DB defaults
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.path", "docfields.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docfields")
	v.SetDefault("db.password", "docfields_secret")
	v.SetDefault("db.name", "docfields")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.auto_migrate", true)

	// S3 defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "docfields-results")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "results")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Extraction defaults
	v.SetDefault("extraction.threshold", 80.0)
	v.SetDefault("extraction.adaptive_cap", 12)
	v.SetDefault("extraction.workers", 4)
	v.SetDefault("extraction.regex_timeout", "250ms")
	v.SetDefault("extraction.fuzzy", false)
	v.SetDefault("extraction.max_edit_distance", 2)
	v.SetDefault("extraction.value_window", 50)
	v.SetDefault("extraction.low_word_confidence", 60.0)
	v.SetDefault("extraction.pattern_cache_size", 256)
	v.SetDefault("extraction.profiles_dir", "")
	v.SetDefault("extraction.default_profile", "default")

	// Entity defaults
	v.SetDefault("entity.recognizer", "rules")
	v.SetDefault("entity.endpoint", "")
	v.SetDefault("entity.timeout", "2s")

	// OCR defaults
	v.SetDefault("ocr.engines", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.psm", 3)
	v.SetDefault("ocr.remote_url", "")
	v.SetDefault("ocr.remote_api_key", "")
	v.SetDefault("ocr.remote_timeout", "60s")
	v.SetDefault("ocr.cooldown", "30s")

	// Batch defaults
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.extensions", ".png,.jpg,.jpeg,.tif,.tiff,.txt,.json")
	v.SetDefault("batch.recursive", false)
	v.SetDefault("batch.output_dir", "output")
	v.SetDefault("batch.write_raw", true)
	v.SetDefault("batch.write_json", true)
	v.SetDefault("batch.write_xlsx", false)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "DOCFIELDS_SERVER_PORT",
		"server.read_timeout":            "DOCFIELDS_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "DOCFIELDS_SERVER_WRITE_TIMEOUT",
		"server.environment":             "DOCFIELDS_SERVER_ENVIRONMENT",
		"server.max_upload_mb":           "DOCFIELDS_SERVER_MAX_UPLOAD_MB",
		"db.driver":                      "DOCFIELDS_DB_DRIVER",
		"db.path":                        "DOCFIELDS_DB_PATH",
		"db.host":                        "DOCFIELDS_DB_HOST",
		"db.port":                        "DOCFIELDS_DB_PORT",
		"db.user":                        "DOCFIELDS_DB_USER",
		"db.password":                    "DOCFIELDS_DB_PASSWORD",
		"db.name":                        "DOCFIELDS_DB_NAME",
		"db.sslmode":                     "DOCFIELDS_DB_SSLMODE",
		"db.max_open":                    "DOCFIELDS_DB_MAX_OPEN",
		"db.max_idle":                    "DOCFIELDS_DB_MAX_IDLE",
		"db.auto_migrate":                "DOCFIELDS_DB_AUTO_MIGRATE",
		"s3.enabled":                     "DOCFIELDS_S3_ENABLED",
		"s3.region":                      "DOCFIELDS_S3_REGION",
		"s3.bucket":                      "DOCFIELDS_S3_BUCKET",
		"s3.endpoint":                    "DOCFIELDS_S3_ENDPOINT",
		"s3.access_key":                  "DOCFIELDS_S3_ACCESS_KEY",
		"s3.secret_key":                  "DOCFIELDS_S3_SECRET_KEY",
		"s3.prefix":                      "DOCFIELDS_S3_PREFIX",
		"log.level":                      "DOCFIELDS_LOG_LEVEL",
		"log.format":                     "DOCFIELDS_LOG_FORMAT",
		"cors.allowed_origins":           "DOCFIELDS_CORS_ALLOWED_ORIGINS",
		"extraction.threshold":           "DOCFIELDS_EXTRACTION_THRESHOLD",
		"extraction.adaptive_cap":        "DOCFIELDS_EXTRACTION_ADAPTIVE_CAP",
		"extraction.workers":             "DOCFIELDS_EXTRACTION_WORKERS",
		"extraction.regex_timeout":       "DOCFIELDS_EXTRACTION_REGEX_TIMEOUT",
		"extraction.fuzzy":               "DOCFIELDS_EXTRACTION_FUZZY",
		"extraction.max_edit_distance":   "DOCFIELDS_EXTRACTION_MAX_EDIT_DISTANCE",
		"extraction.value_window":        "DOCFIELDS_EXTRACTION_VALUE_WINDOW",
		"extraction.low_word_confidence": "DOCFIELDS_EXTRACTION_LOW_WORD_CONFIDENCE",
		"extraction.pattern_cache_size":  "DOCFIELDS_EXTRACTION_PATTERN_CACHE_SIZE",
		"extraction.profiles_dir":        "DOCFIELDS_EXTRACTION_PROFILES_DIR",
		"extraction.default_profile":     "DOCFIELDS_EXTRACTION_DEFAULT_PROFILE",
		"entity.recognizer":              "DOCFIELDS_ENTITY_RECOGNIZER",
		"entity.endpoint":                "DOCFIELDS_ENTITY_ENDPOINT",
		"entity.timeout":                 "DOCFIELDS_ENTITY_TIMEOUT",
		"ocr.engines":                    "DOCFIELDS_OCR_ENGINES",
		"ocr.language":                   "DOCFIELDS_OCR_LANGUAGE",
		"ocr.psm":                        "DOCFIELDS_OCR_PSM",
		"ocr.remote_url":                 "DOCFIELDS_OCR_REMOTE_URL",
		"ocr.remote_api_key":             "DOCFIELDS_OCR_REMOTE_API_KEY",
		"ocr.remote_timeout":             "DOCFIELDS_OCR_REMOTE_TIMEOUT",
		"ocr.cooldown":                   "DOCFIELDS_OCR_COOLDOWN",
		"batch.concurrency":              "DOCFIELDS_BATCH_CONCURRENCY",
		"batch.extensions":               "DOCFIELDS_BATCH_EXTENSIONS",
		"batch.recursive":                "DOCFIELDS_BATCH_RECURSIVE",
		"batch.output_dir":               "DOCFIELDS_BATCH_OUTPUT_DIR",
		"batch.write_raw":                "DOCFIELDS_BATCH_WRITE_RAW",
		"batch.write_json":               "DOCFIELDS_BATCH_WRITE_JSON",
		"batch.write_xlsx":               "DOCFIELDS_BATCH_WRITE_XLSX",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Container platforms set PORT. Use it if DOCFIELDS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCFIELDS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:          serverPort,
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		Environment:   v.GetString("server.environment"),
		MaxUploadSize: v.GetInt64("server.max_upload_mb") * 1024 * 1024,
	}
	cfg.DB = DBConfig{
		Driver:   v.GetString("db.driver"),
		Path:     v.GetString("db.path"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),

		AutoMigrate: v.GetBool("db.auto_migrate"),
	}
	cfg.S3 = S3Config{
		Enabled:   v.GetBool("s3.enabled"),
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
		Prefix:    v.GetString("s3.prefix"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: SplitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Extraction = ExtractionConfig{
		Threshold:         v.GetFloat64("extraction.threshold"),
		AdaptiveCap:       v.GetInt("extraction.adaptive_cap"),
		Workers:           v.GetInt("extraction.workers"),
		RegexTimeout:      v.GetDuration("extraction.regex_timeout"),
		Fuzzy:             v.GetBool("extraction.fuzzy"),
		MaxEditDistance:   v.GetInt("extraction.max_edit_distance"),
		ValueWindow:       v.GetInt("extraction.value_window"),
		LowWordConfidence: v.GetFloat64("extraction.low_word_confidence"),
		PatternCacheSize:  v.GetInt("extraction.pattern_cache_size"),
		ProfilesDir:       v.GetString("extraction.profiles_dir"),
		DefaultProfile:    v.GetString("extraction.default_profile"),
	}
	cfg.Entity = EntityConfig{
		Recognizer: v.GetString("entity.recognizer"),
		Endpoint:   v.GetString("entity.endpoint"),
		Timeout:    v.GetDuration("entity.timeout"),
	}
	cfg.OCR = OCRConfig{
		Engines:       SplitList(v.GetString("ocr.engines")),
		Language:      v.GetString("ocr.language"),
		PageSegMode:   v.GetInt("ocr.psm"),
		RemoteURL:     v.GetString("ocr.remote_url"),
		RemoteAPIKey:  v.GetString("ocr.remote_api_key"),
		RemoteTimeout: v.GetDuration("ocr.remote_timeout"),
		Cooldown:      v.GetDuration("ocr.cooldown"),
	}
	cfg.Batch = BatchConfig{
		Concurrency: v.GetInt("batch.concurrency"),
		Extensions:  SplitList(v.GetString("batch.extensions")),
		Recursive:   v.GetBool("batch.recursive"),
		OutputDir:   v.GetString("batch.output_dir"),
		WriteRaw:    v.GetBool("batch.write_raw"),
		WriteJSON:   v.GetBool("batch.write_json"),
		WriteXLSX:   v.GetBool("batch.write_xlsx"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SplitList parses a comma-separated setting, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
