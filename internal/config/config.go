// Package config provides configuration loading and management for the audit
// registry service. It handles environment variable parsing and provides
// default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// In development, it loads .env and .env.local files if they exist.
// In production, it relies solely on system environment variables.
// The loading order ensures that system environment variables take precedence over .env files.
func init() {
	// godotenv.Load() does not override already-set environment variables,
	// preserving OS env > .env precedence

	// Load .env file if it exists (for shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (for local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the audit registry service.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // Database connection string (PostgreSQL); empty means in-memory store
	NATSURL     string // NATS server URL; empty means no event publishing
	S3Endpoint  string // S3-compatible storage endpoint for evidence artifacts
	S3Region    string // S3 region
	S3Bucket    string // S3 bucket name
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key
	JWTIssuer   string // Expected issuer for JWT validation; empty disables auth
	JWTAudience string // Expected audience for JWT validation
	JWKSURL     string // JWKS discovery endpoint for token verification
	IdentityURL string // Complainant directory URL for advisory lookups

	// Artifact limits
	MaxArtifactSize  int64    // Maximum evidence artifact size in bytes (default 25MB)
	AllowedMimeTypes []string // Allowed MIME types for artifact uploads

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort     = "8080"      // Default HTTP server port
	defaultS3Region = "us-east-1" // Default S3 region
	defaultEnv      = "dev"       // Default environment
)

// AuthEnabled reports whether JWT verification should be enforced.
func (c Config) AuthEnabled() bool {
	return c.JWTIssuer != ""
}

// Load reads environment variables and produces a Config suitable for wiring
// the service. It handles both required and optional configuration parameters,
// providing defaults where appropriate.
func Load() (Config, error) {
	cfg := Config{}

	if env, exists := os.LookupEnv("AUDIT_ENV"); exists {
		cfg.Env = env
	} else {
		cfg.Env = defaultEnv
	}

	if port, exists := os.LookupEnv("AUDIT_PORT"); exists {
		cfg.Port = port
	} else {
		cfg.Port = defaultPort
	}

	// Handle optional variables
	if dsn, exists := os.LookupEnv("AUDIT_DB_DSN"); exists {
		cfg.DatabaseDSN = dsn
	}

	if natsURL, exists := os.LookupEnv("AUDIT_NATS_URL"); exists {
		cfg.NATSURL = natsURL
	}

	if s3Endpoint, exists := os.LookupEnv("AUDIT_S3_ENDPOINT"); exists {
		cfg.S3Endpoint = s3Endpoint
	}

	if s3Region, exists := os.LookupEnv("AUDIT_S3_REGION"); exists {
		cfg.S3Region = s3Region
	} else {
		cfg.S3Region = defaultS3Region
	}

	if s3Bucket, exists := os.LookupEnv("AUDIT_S3_BUCKET"); exists {
		cfg.S3Bucket = s3Bucket
	}

	if s3AccessKey, exists := os.LookupEnv("AUDIT_S3_ACCESS_KEY"); exists {
		cfg.S3AccessKey = s3AccessKey
	}

	if s3SecretKey, exists := os.LookupEnv("AUDIT_S3_SECRET_KEY"); exists {
		cfg.S3SecretKey = s3SecretKey
	}

	if jwtIssuer, exists := os.LookupEnv("AUDIT_JWT_ISSUER"); exists {
		cfg.JWTIssuer = jwtIssuer
	}

	if jwtAudience, exists := os.LookupEnv("AUDIT_JWT_AUDIENCE"); exists {
		cfg.JWTAudience = jwtAudience
	}

	if jwksURL, exists := os.LookupEnv("AUDIT_JWKS_URL"); exists {
		cfg.JWKSURL = jwksURL
	}

	if identityURL, exists := os.LookupEnv("AUDIT_IDENTITY_URL"); exists {
		cfg.IdentityURL = identityURL
	}

	// Handle artifact limits
	if maxArtifactSize, exists := os.LookupEnv("AUDIT_MAX_ARTIFACT_SIZE"); exists {
		if size, err := strconv.ParseInt(maxArtifactSize, 10, 64); err == nil {
			cfg.MaxArtifactSize = size
		}
	} else {
		// Default to 25MB; scanned filings and photos fit comfortably
		cfg.MaxArtifactSize = 25 * 1024 * 1024
	}

	if allowedMimeTypes, exists := os.LookupEnv("AUDIT_ALLOWED_MIME_TYPES"); exists {
		cfg.AllowedMimeTypes = strings.Split(allowedMimeTypes, ",")
		for i, mimeType := range cfg.AllowedMimeTypes {
			cfg.AllowedMimeTypes[i] = strings.TrimSpace(mimeType)
		}
	} else {
		cfg.AllowedMimeTypes = []string{"application/pdf", "image/jpeg", "image/png", "text/plain"}
	}

	// Handle CORS configuration
	if corsOrigins, exists := os.LookupEnv("AUDIT_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		for i, origin := range cfg.CORSAllowedOrigins {
			cfg.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	// Auth is optional but must be configured as a pair
	if cfg.JWTIssuer != "" && cfg.JWTAudience == "" {
		return cfg, fmt.Errorf("AUDIT_JWT_AUDIENCE is required when AUDIT_JWT_ISSUER is set")
	}
	if cfg.JWTAudience != "" && cfg.JWTIssuer == "" {
		return cfg, fmt.Errorf("AUDIT_JWT_ISSUER is required when AUDIT_JWT_AUDIENCE is set")
	}

	return cfg, nil
}
