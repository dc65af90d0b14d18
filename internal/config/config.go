package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"carwash/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Mail       MailConfig       `yaml:"mail"`
	Booking    BookingConfig    `yaml:"booking"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type AuthConfig struct {
	JWTSecret       string         `yaml:"jwt_secret"`
	TokenTTLMinutes int            `yaml:"token_ttl_minutes"`
	Admins          []AdminAccount `yaml:"admins"`
}

// AdminAccount is one authorized operator. PasswordHash is a bcrypt hash;
// see cmd/hashpw for generating one.
type AdminAccount struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type StorageConfig struct {
	Backend       string    `yaml:"backend"` // local or gcs
	LocalPath     string    `yaml:"local_path"`
	PublicBaseURL string    `yaml:"public_base_url"`
	GCS           GCSConfig `yaml:"gcs"`
}

type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Bucket          string `yaml:"bucket"`
}

type MailConfig struct {
	AMQPURL             string `yaml:"amqp_url"`
	Queue               string `yaml:"queue"`
	MaxRetries          int    `yaml:"max_retries"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

type BookingConfig struct {
	BusinessName  string `yaml:"business_name"`
	BusinessEmail string `yaml:"business_email"`
	OpenHour      int    `yaml:"open_hour"`
	CloseHour     int    `yaml:"close_hour"`
	SlotMinutes   int    `yaml:"slot_minutes"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables win either way.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("auth jwt_secret is required")
	}

	if c.Booking.BusinessEmail == "" {
		return errors.New("booking business_email is required")
	}

	if c.Booking.OpenHour < 0 || c.Booking.CloseHour > 24 || c.Booking.OpenHour >= c.Booking.CloseHour {
		return fmt.Errorf("invalid business hours: open=%d close=%d", c.Booking.OpenHour, c.Booking.CloseHour)
	}

	if c.Booking.SlotMinutes <= 0 || c.Booking.SlotMinutes > 60 {
		return fmt.Errorf("invalid slot_minutes: %d", c.Booking.SlotMinutes)
	}

	seen := make(map[string]bool)
	for _, admin := range c.Auth.Admins {
		email := strings.ToLower(strings.TrimSpace(admin.Email))
		if email == "" {
			return errors.New("admin entry with empty email")
		}
		if admin.PasswordHash == "" {
			return fmt.Errorf("admin %s has no password_hash", email)
		}
		if seen[email] {
			return fmt.Errorf("duplicate admin email: %s", email)
		}
		seen[email] = true
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalPath == "" {
			return errors.New("storage local_path is required for local backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" || c.Storage.GCS.CredentialsFile == "" {
			return errors.New("storage gcs bucket and credentials_file are required for gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	return nil
}

// ValidateServices checks the offered service catalog for empty names and
// duplicates.
func ValidateServices(services []string) error {
	if len(services) == 0 {
		return errors.New("service catalog is empty")
	}
	seen := make(map[string]bool)
	for _, s := range services {
		name := strings.TrimSpace(s)
		if name == "" {
			return errors.New("service with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate service: %s", name)
		}
		seen[name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 60
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Backend == "local" && c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "data/uploads"
	}
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = "/uploads"
	}
	if c.Mail.Queue == "" {
		c.Mail.Queue = "mail.requests"
	}
	if c.Mail.MaxRetries == 0 {
		c.Mail.MaxRetries = 5
	}
	if c.Mail.PollIntervalSeconds == 0 {
		c.Mail.PollIntervalSeconds = models.WorkerPollIntervalSeconds
	}

	// Business hours fall back to the defaults the booking form always used.
	if c.Booking.OpenHour == 0 && c.Booking.CloseHour == 0 {
		c.Booking.OpenHour = models.DefaultOpenHour
		c.Booking.CloseHour = models.DefaultCloseHour
	}
	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = models.DefaultSlotMinutes
	}
	if c.RateLimit.Burst == 0 && c.RateLimit.RPS > 0 {
		c.RateLimit.Burst = 5
	}
}
