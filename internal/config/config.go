package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"messengerhub/internal/constants"
	"messengerhub/internal/models"
	"messengerhub/internal/security"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingVerifyToken = models.ConfigError{Message: "missing webhook verify token (set WEBHOOK_VERIFY_TOKEN)"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingDBURL       = models.ConfigError{Message: "missing database url (set DATABASE_URL)"}
)

// DotEnvFile is loaded from the working directory when present. Variables
// already set in the process environment take precedence.
var DotEnvFile = ".env"

// environment holds the variables that override the config file
type environment struct {
	VerifyToken     string   `env:"WEBHOOK_VERIFY_TOKEN"`
	Port            string   `env:"PORT"`
	LogLevel        string   `env:"LOG_LEVEL"`
	DBDriver        string   `env:"DB_DRIVER"`
	DBPath          string   `env:"DB_PATH"`
	DatabaseURL     string   `env:"DATABASE_URL"`
	DBName          string   `env:"DB_NAME"`
	GraphAPIURL     string   `env:"FB_GRAPH_API_URL"`
	GraphAPIVersion string   `env:"FB_GRAPH_API_VERSION"`
	MaxUploadMB     int      `env:"MAX_UPLOAD_MB"`
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	OTLPEndpoint    string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig builds the configuration from an optional JSON file, a .env file and
// the process environment, then applies defaults and validates the result.
// A missing file at path is not an error.
func LoadConfig(path string) (*models.Config, error) {
	config, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadDatabaseConfig resolves only the store settings, for tools that never serve webhooks
func LoadDatabaseConfig(path string) (models.DatabaseConfig, error) {
	config, err := load(path)
	if err != nil {
		return models.DatabaseConfig{}, err
	}
	if err := validateDatabase(config.Database); err != nil {
		return models.DatabaseConfig{}, err
	}
	return config.Database, nil
}

func load(path string) (*models.Config, error) {
	var config models.Config

	if path != "" {
		if err := security.ValidateFilePath(path); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		file, err := os.ReadFile(path) // #nosec G304 - path validated above
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := json.Unmarshal(file, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}
	config.Pages = mergePages(config.Pages, pagesFromEnvironment())

	applyDefaults(&config)
	return &config, nil
}

func applyEnvironmentOverrides(c *models.Config) error {
	var e environment
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if e.VerifyToken != "" {
		c.Webhook.VerifyToken = e.VerifyToken
	}
	if e.Port != "" {
		c.Server.Port = e.Port
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.DBDriver != "" {
		c.Database.Driver = e.DBDriver
	}
	if e.DBPath != "" {
		c.Database.Path = e.DBPath
	}
	if e.DatabaseURL != "" {
		c.Database.URL = e.DatabaseURL
	}
	if e.DBName != "" {
		c.Database.Name = e.DBName
	}
	if e.GraphAPIURL != "" {
		c.Messenger.GraphAPIBaseURL = e.GraphAPIURL
	}
	if e.GraphAPIVersion != "" {
		c.Messenger.GraphAPIVersion = e.GraphAPIVersion
	}
	if e.MaxUploadMB > 0 {
		c.Messenger.MaxUploadMB = e.MaxUploadMB
	}
	if len(e.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = e.AllowedOrigins
	}
	if e.OTLPEndpoint != "" {
		c.Tracing.OTLPEndpoint = e.OTLPEndpoint
		c.Tracing.Enabled = true
	}
	return nil
}

// pagesFromEnvironment reads FB_PAGE_{n}_ID, _NAME and _ACCESS_TOKEN for n = 1..10.
// Slots without an id are skipped.
func pagesFromEnvironment() []models.PageConfig {
	var pages []models.PageConfig
	for n := 1; n <= constants.MaxEnvPages; n++ {
		prefix := fmt.Sprintf("FB_PAGE_%d_", n)
		id := strings.TrimSpace(os.Getenv(prefix + "ID"))
		if id == "" {
			continue
		}
		pages = append(pages, models.PageConfig{
			ID:          id,
			Name:        strings.TrimSpace(os.Getenv(prefix + "NAME")),
			AccessToken: strings.TrimSpace(os.Getenv(prefix + "ACCESS_TOKEN")),
		})
	}
	return pages
}

// mergePages appends environment pages after file pages. An environment page
// replaces a file page with the same id in place.
func mergePages(filePages, envPages []models.PageConfig) []models.PageConfig {
	merged := append([]models.PageConfig(nil), filePages...)
	index := make(map[string]int, len(merged))
	for i, p := range merged {
		index[p.ID] = i
	}
	for _, p := range envPages {
		if i, ok := index[p.ID]; ok {
			merged[i] = p
			continue
		}
		index[p.ID] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == "" {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Messenger.GraphAPIBaseURL == "" {
		c.Messenger.GraphAPIBaseURL = constants.DefaultGraphAPIBaseURL
	}
	if c.Messenger.GraphAPIVersion == "" {
		c.Messenger.GraphAPIVersion = constants.DefaultGraphAPIVersion
	}
	if c.Messenger.ProfileTimeoutSec <= 0 {
		c.Messenger.ProfileTimeoutSec = constants.DefaultProfileTimeoutSec
	}
	if c.Messenger.SendTimeoutSec <= 0 {
		c.Messenger.SendTimeoutSec = constants.DefaultSendTimeoutSec
	}
	if c.Messenger.UploadTimeoutSec <= 0 {
		c.Messenger.UploadTimeoutSec = constants.DefaultUploadTimeoutSec
	}
	if c.Messenger.MaxUploadMB <= 0 {
		c.Messenger.MaxUploadMB = constants.DefaultMaxUploadSizeMB
	}

	if c.Database.Driver == "" {
		c.Database.Driver = constants.DefaultDatabaseDriver
	}
	if c.Database.Driver == constants.DatabaseDriverSQLite && c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}
	if c.Database.Driver == constants.DatabaseDriverMongoDB && c.Database.Name == "" {
		c.Database.Name = constants.DefaultMongoDatabase
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func validate(c *models.Config) error {
	if c.Webhook.VerifyToken == "" {
		return ErrMissingVerifyToken
	}
	if err := validateDatabase(c.Database); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid log level %q", c.LogLevel)}
	}

	seen := make(map[string]bool, len(c.Pages))
	for i, page := range c.Pages {
		if page.ID == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty page id in page %d", i)}
		}
		if seen[page.ID] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate page id: %s", page.ID)}
		}
		seen[page.ID] = true
	}
	return nil
}

func validateDatabase(db models.DatabaseConfig) error {
	switch db.Driver {
	case constants.DatabaseDriverSQLite:
		if db.Path == "" {
			return ErrMissingDBPath
		}
	case constants.DatabaseDriverPostgres, constants.DatabaseDriverMongoDB:
		if db.URL == "" {
			return ErrMissingDBURL
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("unsupported database driver %q (use sqlite, postgres or mongodb)", db.Driver)}
	}
	return nil
}
