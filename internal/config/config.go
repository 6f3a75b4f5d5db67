// Package config loads process configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the startup configuration for the parkhub daemon.
type Config struct {
	DataDir       string
	EncryptionKey string
	SessionTTL    time.Duration
	LogLevel      string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	ResendAPIKey string
	EmailFrom    string
}

type fileConfig struct {
	DataDir       string `yaml:"data_dir"`
	EncryptionKey string `yaml:"encryption_key"`
	SessionTTL    string `yaml:"session_ttl"`
	LogLevel      string `yaml:"log_level"`

	Admin struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`

	Email struct {
		From string `yaml:"from"`
	} `yaml:"email"`
}

// Load builds the configuration from defaults, then the YAML file at path if
// one is given, then environment variables. An empty path skips the file
// layer; a path that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Config{
		DataDir:       "./data",
		SessionTTL:    24 * time.Hour,
		LogLevel:      "info",
		AdminUsername: "admin",
		AdminEmail:    "admin@parkhub.local",
		EmailFrom:     "ParkHub <noreply@parkhub.local>",
	}

	invalid := make([]string, 0, 2)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var file fileConfig
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		applyFile(&cfg, file, &invalid)
	}

	applyEnv(&cfg, &invalid)

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values for: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func applyFile(cfg *Config, file fileConfig, invalid *[]string) {
	if dir := strings.TrimSpace(file.DataDir); dir != "" {
		cfg.DataDir = dir
	}
	if key := strings.TrimSpace(file.EncryptionKey); key != "" {
		cfg.EncryptionKey = key
	}
	if ttlValue := strings.TrimSpace(file.SessionTTL); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			*invalid = append(*invalid, "session_ttl")
		} else {
			cfg.SessionTTL = ttl
		}
	}
	if level := strings.TrimSpace(file.LogLevel); level != "" {
		if !validLogLevel(level) {
			*invalid = append(*invalid, "log_level")
		} else {
			cfg.LogLevel = strings.ToLower(level)
		}
	}
	if username := strings.TrimSpace(file.Admin.Username); username != "" {
		cfg.AdminUsername = username
	}
	if email := strings.TrimSpace(file.Admin.Email); email != "" {
		cfg.AdminEmail = email
	}
	if password := file.Admin.Password; password != "" {
		cfg.AdminPassword = password
	}
	if from := strings.TrimSpace(file.Email.From); from != "" {
		cfg.EmailFrom = from
	}
}

func applyEnv(cfg *Config, invalid *[]string) {
	if dir := strings.TrimSpace(os.Getenv("PARKHUB_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}
	if key := os.Getenv("PARKHUB_ENCRYPTION_KEY"); key != "" {
		cfg.EncryptionKey = key
	}
	if ttlValue := strings.TrimSpace(os.Getenv("PARKHUB_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			*invalid = append(*invalid, "PARKHUB_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}
	if level := strings.TrimSpace(os.Getenv("PARKHUB_LOG_LEVEL")); level != "" {
		if !validLogLevel(level) {
			*invalid = append(*invalid, "PARKHUB_LOG_LEVEL")
		} else {
			cfg.LogLevel = strings.ToLower(level)
		}
	}
	if username := strings.TrimSpace(os.Getenv("PARKHUB_ADMIN_USERNAME")); username != "" {
		cfg.AdminUsername = username
	}
	if email := strings.TrimSpace(os.Getenv("PARKHUB_ADMIN_EMAIL")); email != "" {
		cfg.AdminEmail = email
	}
	if password := os.Getenv("PARKHUB_ADMIN_PASSWORD"); password != "" {
		cfg.AdminPassword = password
	}
	if key := strings.TrimSpace(os.Getenv("RESEND_API_KEY")); key != "" {
		cfg.ResendAPIKey = key
	}
	if from := strings.TrimSpace(os.Getenv("PARKHUB_EMAIL_FROM")); from != "" {
		cfg.EmailFrom = from
	}
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
