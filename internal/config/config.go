package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gte=0"`
		IdleTimeout     time.Duration `yaml:"idleTimeout" validate:"gte=0"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
		MaxUploadBytes  int64         `yaml:"maxUploadBytes" validate:"gt=0"`
		CORSOrigins     []string      `yaml:"corsOrigins"`
		RateLimit       struct {
			Requests int           `yaml:"requests" validate:"gte=0"`
			Window   time.Duration `yaml:"window" validate:"gte=0"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		// Driver: sqlite, mysql, postgres
		Driver   string `yaml:"driver" validate:"oneof=sqlite mysql postgres"`
		Path     string `yaml:"path"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Storage struct {
		// Driver: local, minio
		Driver string `yaml:"driver" validate:"oneof=local minio"`
		Dir    string `yaml:"dir"`
	} `yaml:"storage"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Cache struct {
		Capacity int           `yaml:"capacity" validate:"gt=0"`
		TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
		Sweep    string        `yaml:"sweep" validate:"required"`
	} `yaml:"cache"`

	Detector struct {
		ModelPath     string  `yaml:"modelPath"`
		Trees         int     `yaml:"trees" validate:"gte=0"`
		SampleSize    int     `yaml:"sampleSize" validate:"gte=0"`
		Contamination float64 `yaml:"contamination" validate:"gte=0,lt=0.5"`
		MinThreshold  float64 `yaml:"minThreshold" validate:"gte=0,lt=1"`
		Seed          int64   `yaml:"seed"`
		MinRows       int     `yaml:"minRows" validate:"gte=0"`
		ZThreshold    float64 `yaml:"zThreshold" validate:"gte=0"`
		MaxReasons    int     `yaml:"maxReasons" validate:"gte=0"`
	} `yaml:"detector"`

	AI struct {
		Enabled          bool          `yaml:"enabled"`
		APIKey           string        `yaml:"apiKey"`
		Model            string        `yaml:"model"`
		BaseURL          string        `yaml:"baseURL" validate:"omitempty,url"`
		Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
		FailureThreshold uint32        `yaml:"failureThreshold"`
		OpenTimeout      time.Duration `yaml:"openTimeout" validate:"gte=0"`
	} `yaml:"ai"`

	Stream struct {
		Interval    time.Duration `yaml:"interval" validate:"gt=0"`
		AnomalyRate float64       `yaml:"anomalyRate" validate:"gte=0,lte=1"`
		// Auth: required, optional, none
		Auth string `yaml:"auth" validate:"oneof=required optional none"`
	} `yaml:"stream"`

	Log struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error fatal disabled"`
		Format string `yaml:"format" validate:"oneof=json console"`
		Caller bool   `yaml:"caller"`
	} `yaml:"log"`

	Auth struct {
		JWTSecret string        `yaml:"jwtSecret" validate:"required"`
		Issuer    string        `yaml:"issuer"`
		TokenTTL  time.Duration `yaml:"tokenTTL" validate:"gt=0"`
	} `yaml:"auth"`
}

// Default balikin config dengan nilai default
func Default() *Config {
	var c Config
	c.Server.Port = 8000
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.IdleTimeout = 120 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.MaxUploadBytes = 32 << 20
	c.Server.RateLimit.Requests = 60
	c.Server.RateLimit.Window = time.Minute

	c.Database.Driver = "sqlite"
	c.Database.Path = "pattern-analyzer.db"
	c.Database.SSLMode = "disable"

	c.Storage.Driver = "local"
	c.Storage.Dir = "results"

	c.Cache.Capacity = 1000
	c.Cache.TTL = time.Hour
	c.Cache.Sweep = "@every 1m"

	c.AI.Model = "gpt-4o-mini"
	c.AI.Timeout = 10 * time.Second
	c.AI.FailureThreshold = 3
	c.AI.OpenTimeout = time.Minute

	c.Stream.Interval = time.Second
	c.Stream.AnomalyRate = 0.1
	c.Stream.Auth = "optional"

	c.Log.Level = "info"
	c.Log.Format = "json"

	c.Auth.Issuer = "pattern-analyzer"
	c.Auth.TokenTTL = 24 * time.Hour
	return &c
}

// Load baca .env, file config (kalau ada path), lalu env override dan validasi
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_PATH", &c.Database.Path)
	str("DB_DSN", &c.Database.DSN)
	str("DB_HOST", &c.Database.Host)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)
	str("MINIO_REGION", &c.Minio.Region)
	str("MODEL_PATH", &c.Detector.ModelPath)
	str("OPENAI_API_KEY", &c.AI.APIKey)
	str("OPENAI_MODEL", &c.AI.Model)
	str("OPENAI_BASE_URL", &c.AI.BaseURL)
	str("STREAM_AUTH", &c.Stream.Auth)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	for key, dst := range map[string]*int{"PORT": &c.Server.Port, "DB_PORT": &c.Database.Port} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		c.Minio.UseSSL = b
	}
	// kunci API ada = fitur insight aktif
	if c.AI.APIKey != "" {
		c.AI.Enabled = true
	}
	return nil
}

// Validate cek tag validate plus aturan antar section
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("invalid config: database.path is required for sqlite")
		}
	case "mysql", "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("invalid config: database.dsn or database.host is required for %s", c.Database.Driver)
		}
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.Dir == "" {
			return errors.New("invalid config: storage.dir is required for local storage")
		}
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			return errors.New("invalid config: minio.endpoint and minio.bucketName are required for minio storage")
		}
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		return errors.New("invalid config: ai.apiKey is required when ai is enabled")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.port(3306),
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres (format URL)
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.port(5432))),
		Path:   "/" + c.Database.Name,
	}
	q := url.Values{}
	if c.Database.SSLMode != "" {
		q.Set("sslmode", c.Database.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Config) port(def int) int {
	if c.Database.Port == 0 {
		return def
	}
	return c.Database.Port
}
