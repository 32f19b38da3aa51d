package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAdminUsername and DefaultAdminPassword seed the bootstrap admin
	// when nothing else is configured. Operators are expected to override them.
	DefaultAdminUsername = "bamika"
	DefaultAdminPassword = "Bamika$007"

	placeholderSessionKey = "CHANGE_ME_IN_PRODUCTION"
)

type Config struct {
	AppName         string `json:"app_name" yaml:"app_name"`
	ListenIP        string `json:"listen_ip" yaml:"listen_ip"`
	ListenPort      int    `json:"listen_port" yaml:"listen_port"`
	SessionKey      string `json:"session_key" yaml:"session_key"`
	SessionTTLHours int    `json:"session_ttl_hours" yaml:"session_ttl_hours"`
	Production      bool   `json:"production" yaml:"production"`

	// Storage is "memory" or "sqlite".
	Storage      string `json:"storage" yaml:"storage"`
	DatabasePath string `json:"database_path" yaml:"database_path"`

	AdminUsername string `json:"admin_username" yaml:"admin_username"`
	AdminPassword string `json:"admin_password" yaml:"admin_password"`

	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	StaticDir      string   `json:"static_dir" yaml:"static_dir"`
	CSRFEnabled    bool     `json:"csrf_enabled" yaml:"csrf_enabled"`
	CaptchaEnabled bool     `json:"captcha_enabled" yaml:"captcha_enabled"`

	MinMessageLength     int `json:"min_message_length" yaml:"min_message_length"`
	ContactRatePerMinute int `json:"contact_rate_per_minute" yaml:"contact_rate_per_minute"`
	ContactBurst         int `json:"contact_burst" yaml:"contact_burst"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	MailgunDomain string `json:"mailgun_domain" yaml:"mailgun_domain"`
	MailgunAPIKey string `json:"mailgun_api_key" yaml:"mailgun_api_key"`
	MailFrom      string `json:"mail_from" yaml:"mail_from"`
	MailTo        string `json:"mail_to" yaml:"mail_to"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		AppName:         "Bamika Vision",
		ListenIP:        "0.0.0.0",
		ListenPort:      5000,
		SessionTTLHours: 24,
		Storage:         "memory",
		DatabasePath:    "./bamikavision.db",
		AdminUsername:   DefaultAdminUsername,
		AdminPassword:   DefaultAdminPassword,
		AllowedOrigins: []string{
			"http://localhost:5000",
			"https://bamikavision.com",
			"https://www.bamikavision.com",
			"https://bamika-vision.vercel.app",
		},
		StaticDir:            "public",
		MinMessageLength:     5,
		ContactRatePerMinute: 10,
		ContactBurst:         5,
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

// LoadConfig reads a JSON or YAML file (chosen by extension) over the defaults,
// then applies .env and BAMIKA_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()
	applyEnv(cfg)

	if cfg.SessionKey == "" || cfg.SessionKey == placeholderSessionKey {
		log.Warn().Msg("no session key configured, generating a random key; sessions will be invalidated on restart")
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			return nil, err
		}
		cfg.SessionKey = hex.EncodeToString(randomKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage %q (want memory or sqlite)", c.Storage)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port %d", c.ListenPort)
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("session_ttl_hours must be positive")
	}
	if c.MinMessageLength < 1 {
		return fmt.Errorf("min_message_length must be at least 1")
	}
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return fmt.Errorf("admin_username and admin_password must not be empty")
	}
	return nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenIP, c.ListenPort)
}

// MailEnabled reports whether every Mailgun setting needed to relay messages is present.
func (c *Config) MailEnabled() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != "" && c.MailFrom != "" && c.MailTo != ""
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("BAMIKA_SESSION_KEY"); ok && v != "" {
		cfg.SessionKey = v
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = port
		}
	}
	if v, ok := os.LookupEnv("NODE_ENV"); ok {
		cfg.Production = v == "production"
	}
	cfg.Production = getEnvBool("BAMIKA_PRODUCTION", cfg.Production)
	cfg.Storage = getEnv("BAMIKA_STORAGE", cfg.Storage)
	cfg.DatabasePath = getEnv("BAMIKA_DATABASE_PATH", cfg.DatabasePath)
	cfg.AdminUsername = getEnv("BAMIKA_ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPassword = getEnv("BAMIKA_ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.StaticDir = getEnv("BAMIKA_STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = getEnv("BAMIKA_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("BAMIKA_LOG_FORMAT", cfg.LogFormat)
	cfg.CSRFEnabled = getEnvBool("BAMIKA_CSRF_ENABLED", cfg.CSRFEnabled)
	cfg.CaptchaEnabled = getEnvBool("BAMIKA_CAPTCHA_ENABLED", cfg.CaptchaEnabled)
	cfg.MailgunDomain = getEnv("MAILGUN_DOMAIN", cfg.MailgunDomain)
	cfg.MailgunAPIKey = getEnv("MAILGUN_API_KEY", cfg.MailgunAPIKey)
	cfg.MailFrom = getEnv("BAMIKA_MAIL_FROM", cfg.MailFrom)
	cfg.MailTo = getEnv("BAMIKA_MAIL_TO", cfg.MailTo)
	if v, ok := os.LookupEnv("BAMIKA_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		return value == "true" || value == "1" || value == "yes"
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
