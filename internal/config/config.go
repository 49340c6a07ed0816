package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Asset host backends selectable with ASSET_BACKEND.
const (
	AssetBackendCloudinary = "cloudinary"
	AssetBackendMinIO      = "minio"
	AssetBackendS3         = "s3"
)

type Config struct {
	Environment    string   `yaml:"env"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`

	MongoURI      string `yaml:"mongodb_uri"`
	MongoDatabase string `yaml:"mongodb_database"`
	PostgresURI   string `yaml:"postgres_uri"`
	RedisURI      string `yaml:"redis_uri"`

	AssetBackend  string           `yaml:"asset_backend"`
	Cloudinary    CloudinaryConfig `yaml:"cloudinary"`
	MinIO         MinIOConfig      `yaml:"minio"`
	S3            S3Config         `yaml:"s3"`
	SpoolDir      string           `yaml:"spool_dir"`
	UploadTimeout time.Duration    `yaml:"upload_timeout"`

	JWTSecret            string        `yaml:"jwt_secret"`
	SessionTTL           time.Duration `yaml:"session_ttl"`
	OTPTTL               time.Duration `yaml:"otp_ttl"`
	DefaultCountryCode   string        `yaml:"default_country_code"`
	ConnectivityInterval time.Duration `yaml:"connectivity_interval"`
}

type CloudinaryConfig struct {
	CloudName    string `yaml:"cloud_name"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	UploadPreset string `yaml:"upload_preset"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PublicURL string `yaml:"public_url"`
}

func defaults() *Config {
	return &Config{
		Environment:          "development",
		Port:                 "8080",
		AllowedOrigins:       []string{"http://localhost:3000"},
		LogLevel:             "info",
		MongoURI:             "mongodb://localhost:27017",
		MongoDatabase:        "thriftit",
		PostgresURI:          "postgres://localhost:5432/thriftit?sslmode=disable",
		RedisURI:             "redis://localhost:6379/0",
		AssetBackend:         AssetBackendCloudinary,
		Cloudinary:           CloudinaryConfig{UploadPreset: "thrift_it_unsigned"},
		S3:                   S3Config{Region: "ap-south-1"},
		SpoolDir:             "data/spool",
		UploadTimeout:        2 * time.Minute,
		JWTSecret:            "your-secret-key-change-in-production",
		SessionTTL:           7 * 24 * time.Hour,
		OTPTTL:               60 * time.Second,
		DefaultCountryCode:   "+91",
		ConnectivityInterval: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE when set, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(getEnv("ENV", cfg.Environment)))
	cfg.Port = getEnv("PORT", cfg.Port)
	if origins := parseOrigins(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))

	cfg.MongoURI = getEnv("MONGODB_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGODB_DATABASE", cfg.MongoDatabase)
	cfg.PostgresURI = getEnv("POSTGRES_URI", cfg.PostgresURI)
	cfg.RedisURI = getEnv("REDIS_URI", cfg.RedisURI)

	cfg.AssetBackend = strings.ToLower(getEnv("ASSET_BACKEND", cfg.AssetBackend))
	cfg.Cloudinary.CloudName = getEnv("CLOUDINARY_CLOUD_NAME", cfg.Cloudinary.CloudName)
	cfg.Cloudinary.APIKey = getEnv("CLOUDINARY_API_KEY", cfg.Cloudinary.APIKey)
	cfg.Cloudinary.APISecret = getEnv("CLOUDINARY_API_SECRET", cfg.Cloudinary.APISecret)
	cfg.Cloudinary.UploadPreset = getEnv("CLOUDINARY_UPLOAD_PRESET", cfg.Cloudinary.UploadPreset)
	cfg.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.Bucket = getEnv("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.MinIO.PublicURL = getEnv("MINIO_PUBLIC_URL", cfg.MinIO.PublicURL)
	cfg.S3.Region = getEnv("S3_REGION", cfg.S3.Region)
	cfg.S3.Bucket = getEnv("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = getEnv("S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = getEnv("S3_SECRET_KEY", cfg.S3.SecretKey)
	cfg.S3.PublicURL = getEnv("S3_PUBLIC_URL", cfg.S3.PublicURL)
	cfg.SpoolDir = getEnv("SPOOL_DIR", cfg.SpoolDir)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.DefaultCountryCode = getEnv("DEFAULT_COUNTRY_CODE", cfg.DefaultCountryCode)

	var err error
	if cfg.MinIO.UseSSL, err = getBool("MINIO_USE_SSL", cfg.MinIO.UseSSL); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*time.Duration{
		"UPLOAD_TIMEOUT":        &cfg.UploadTimeout,
		"SESSION_TTL":           &cfg.SessionTTL,
		"OTP_TTL":               &cfg.OTPTTL,
		"CONNECTIVITY_INTERVAL": &cfg.ConnectivityInterval,
	} {
		if *dst, err = getDuration(key, *dst); err != nil {
			return nil, err
		}
	}

	switch cfg.AssetBackend {
	case AssetBackendCloudinary, AssetBackendMinIO, AssetBackendS3:
	default:
		return nil, fmt.Errorf("unknown ASSET_BACKEND %q", cfg.AssetBackend)
	}
	return cfg, nil
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
