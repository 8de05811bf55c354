package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the broker reads from the environment.
type Config struct {
	Host    string
	Port    int
	BaseURL string

	// Upstream OIDC client
	AccessClientID         string
	AccessClientSecret     string
	AccessTeamDomain       string
	AccessTokenURL         string
	AccessAuthorizationURL string
	AccessJWKSURL          string

	// AccessIssuer, when set, must match the iss claim of upstream ID tokens.
	AccessIssuer string

	CookieEncryptionKey string
	TokenEncryptionKey  string

	RedisURL    string
	DatabaseURL string

	CORSOrigins      []string
	ApprovalRequired bool

	LogFormat string
	LogLevel  string

	UpstreamTimeout time.Duration
	JWKSCacheTTL    time.Duration
	SweepInterval   time.Duration
}

// Load reads an optional .env file, then the environment.
// Variables already set in the environment win over .env values.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Host:                   getEnv("HOST", "0.0.0.0"),
		Port:                   getEnvInt("PORT", 8080),
		BaseURL:                strings.TrimSuffix(getEnv("BASE_URL", ""), "/"),
		AccessClientID:         getEnv("ACCESS_CLIENT_ID", ""),
		AccessClientSecret:     getEnv("ACCESS_CLIENT_SECRET", ""),
		AccessTeamDomain:       getEnv("ACCESS_TEAM_DOMAIN", ""),
		AccessTokenURL:         getEnv("ACCESS_TOKEN_URL", ""),
		AccessAuthorizationURL: getEnv("ACCESS_AUTHORIZATION_URL", ""),
		AccessJWKSURL:          getEnv("ACCESS_JWKS_URL", ""),
		AccessIssuer:           getEnv("ACCESS_ISSUER", ""),
		CookieEncryptionKey:    getEnv("COOKIE_ENCRYPTION_KEY", ""),
		TokenEncryptionKey:     getEnv("TOKEN_ENCRYPTION_KEY", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		CORSOrigins:            splitList(getEnv("CORS_ORIGIN", "")),
		ApprovalRequired:       getEnvBool("APPROVAL_REQUIRED", false),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		UpstreamTimeout:        getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		JWKSCacheTTL:           getEnvDuration("JWKS_CACHE_TTL", 10*time.Minute),
		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
	}

	if cfg.AccessTeamDomain != "" && cfg.AccessClientID != "" {
		base := AccessOIDCBase(cfg.AccessTeamDomain, cfg.AccessClientID)
		if cfg.AccessTokenURL == "" {
			cfg.AccessTokenURL = base + "/token"
		}
		if cfg.AccessAuthorizationURL == "" {
			cfg.AccessAuthorizationURL = base + "/authorization"
		}
		if cfg.AccessJWKSURL == "" {
			cfg.AccessJWKSURL = base + "/jwks"
		}
	}
	return cfg
}

// AccessOIDCBase returns the Cloudflare Access OIDC base URL for an application.
// team may be a bare team name or a full "<team>.cloudflareaccess.com" domain.
func AccessOIDCBase(team, clientID string) string {
	host := strings.TrimSuffix(strings.TrimPrefix(team, "https://"), "/")
	if !strings.Contains(host, ".") {
		host += ".cloudflareaccess.com"
	}
	return "https://" + host + "/cdn-cgi/access/sso/oidc/" + clientID
}

// Validate reports every missing or malformed required variable at once.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"BASE_URL", c.BaseURL},
		{"ACCESS_CLIENT_ID", c.AccessClientID},
		{"ACCESS_CLIENT_SECRET", c.AccessClientSecret},
		{"ACCESS_TOKEN_URL", c.AccessTokenURL},
		{"ACCESS_AUTHORIZATION_URL", c.AccessAuthorizationURL},
		{"ACCESS_JWKS_URL", c.AccessJWKSURL},
		{"COOKIE_ENCRYPTION_KEY", c.CookieEncryptionKey},
		{"TOKEN_ENCRYPTION_KEY", c.TokenEncryptionKey},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}
	if c.RedisURL == "" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("one of REDIS_URL or DATABASE_URL is required"))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL))
		}
	}
	if c.TokenEncryptionKey != "" {
		if key, err := hex.DecodeString(c.TokenEncryptionKey); err != nil || len(key) != 32 {
			errs = append(errs, errors.New("TOKEN_ENCRYPTION_KEY must be 64 hex characters (32 bytes)"))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	return errors.Join(errs...)
}

// CallbackURL is the redirect URI registered with the upstream provider.
func (c *Config) CallbackURL() string {
	return c.BaseURL + "/callback"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
