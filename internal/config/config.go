package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	FHIRAuthURL     string        `mapstructure:"FHIR_AUTH_URL"`
	FHIRTokenURL    string        `mapstructure:"FHIR_TOKEN_URL"`
	FHIRBaseURL     string        `mapstructure:"FHIR_BASE_URL"`
	ClientID        string        `mapstructure:"CLIENT_ID"`
	RedirectURI     string        `mapstructure:"REDIRECT_URI"`
	Scopes          string        `mapstructure:"SCOPES"`
	PatientClaim    string        `mapstructure:"PATIENT_CLAIM"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled      bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile     string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile      string        `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults target the Epic R4 sandbox so `portal-server serve` works
	// against a public test environment out of the box.
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("FHIR_AUTH_URL", "https://fhir.epic.com/interconnect-fhir-oauth/oauth2/authorize")
	v.SetDefault("FHIR_TOKEN_URL", "https://fhir.epic.com/interconnect-fhir-oauth/oauth2/token")
	v.SetDefault("FHIR_BASE_URL", "https://fhir.epic.com/interconnect-fhir-oauth/api/FHIR/R4")
	v.SetDefault("REDIRECT_URI", "http://localhost:8000/callback")
	v.SetDefault("SCOPES", "openid fhirUser patient/*.read launch/patient")
	v.SetDefault("PATIENT_CLAIM", "patient")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("FHIR_AUTH_URL")
	v.BindEnv("FHIR_TOKEN_URL")
	v.BindEnv("FHIR_BASE_URL")
	v.BindEnv("CLIENT_ID")
	v.BindEnv("REDIRECT_URI")
	v.BindEnv("SCOPES")
	v.BindEnv("PATIENT_CLAIM")
	v.BindEnv("SESSION_TTL")
	v.BindEnv("UPSTREAM_TIMEOUT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("CLIENT_ID is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: The redirect URI points at localhost; set ENV=production and REDIRECT_URI for deployment.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. The OAuth endpoints
// and client registration must be complete, and production requires an
// https redirect URI so authorization codes are never sent in the clear.
func (c *Config) Validate() error {
	if c.FHIRAuthURL == "" || c.FHIRTokenURL == "" || c.FHIRBaseURL == "" {
		return fmt.Errorf("FHIR_AUTH_URL, FHIR_TOKEN_URL and FHIR_BASE_URL must all be set")
	}
	if c.ClientID == "" {
		return fmt.Errorf("CLIENT_ID is required")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("REDIRECT_URI is required")
	}
	if c.PatientClaim == "" {
		return fmt.Errorf("PATIENT_CLAIM must not be empty")
	}
	if c.IsProduction() && !strings.HasPrefix(c.RedirectURI, "https://") {
		return fmt.Errorf("REDIRECT_URI must use https in production, got %q", c.RedirectURI)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
