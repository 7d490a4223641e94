package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppPort         string `env:"APP_PORT" envDefault:"8080"`
	ExternalBaseURL string `env:"EXTERNAL_BASE_URL" envDefault:"http://localhost:8080"`

	// ServerSecret signs the transient OAuth2 state token.
	ServerSecret string `env:"SERVER_SECRET"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	FlowStateTTL    time.Duration `env:"OAUTH2_FLOW_TTL" envDefault:"10m"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	// Optional issuer-configured OIDC provider (keycloak, auth0, azure, ...).
	OIDCProviderName string `env:"OIDC_PROVIDER_NAME"`
	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if cfg.ServerSecret == "" {
		return Config{}, errors.New("config: SERVER_SECRET is required")
	}

	return cfg, nil
}
