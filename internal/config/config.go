// Package config reads keyguard settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"

	customValidation "github.com/allisson/keyguard/internal/validation"
)

// Key providers.
const (
	ProviderLocal = "local"
	ProviderKMS   = "kms"
)

// Wrapped-key stores.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string

	// KeyAlias names the KEK and its wrapped data-key record.
	KeyAlias string
	// KeyProvider selects where the KEK lives: "local" or "kms".
	KeyProvider string

	KeystoreDir       string
	KeystoreAlgorithm string
	// KeystoreCredentialHash locks the local keystore; KeystoreCredential unlocks it.
	KeystoreCredentialHash string
	KeystoreCredential     string

	// KMSKeyURI is a gocloud secrets URL, for example awskms://alias/keyguard or base64key://...
	KMSKeyURI string

	// WrappedKeyStore selects the record backend: "file", "postgres" or "mysql".
	WrappedKeyStore     string
	WrappedKeyDir       string
	WrappedKeyNamespace string

	DBConnectionString   string
	DBMaxOpenConnections int
	DBMaxIdleConnections int
	DBConnMaxLifetime    time.Duration

	StorageDir          string
	StorageIndexCacheMB int

	ServerHost string
	ServerPort int

	CORSEnabled      bool
	CORSAllowOrigins string

	RateLimitEnabled        bool
	RateLimitRequestsPerSec float64
	RateLimitBurst          int

	MetricsEnabled   bool
	MetricsNamespace string
	MetricsPort      int
}

// Load reads configuration from environment variables, after loading the nearest .env file.
func Load() *Config {
	loadDotEnv()

	dataDir := env.GetString("DATA_DIR", defaultDataDir())

	return &Config{
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		KeyAlias:    env.GetString("KEY_ALIAS", "keyguard_keystore_key"),
		KeyProvider: env.GetString("KEY_PROVIDER", ProviderLocal),

		KeystoreDir:            env.GetString("KEYSTORE_DIR", filepath.Join(dataDir, "keystore")),
		KeystoreAlgorithm:      env.GetString("KEYSTORE_ALGORITHM", "aes-gcm"),
		KeystoreCredentialHash: env.GetString("KEYSTORE_CREDENTIAL_HASH", ""),
		KeystoreCredential:     env.GetString("KEYSTORE_CREDENTIAL", ""),

		KMSKeyURI: env.GetString("KMS_KEY_URI", ""),

		WrappedKeyStore:     env.GetString("WRAPPED_KEY_STORE", StoreFile),
		WrappedKeyDir:       env.GetString("WRAPPED_KEY_DIR", filepath.Join(dataDir, "prefs")),
		WrappedKeyNamespace: env.GetString("WRAPPED_KEY_NAMESPACE", "keyguard_prefs"),

		DBConnectionString:   env.GetString("DB_CONNECTION_STRING", ""),
		DBMaxOpenConnections: env.GetInt("DB_MAX_OPEN_CONNECTIONS", 10),
		DBMaxIdleConnections: env.GetInt("DB_MAX_IDLE_CONNECTIONS", 2),
		DBConnMaxLifetime:    env.GetDuration("DB_CONN_MAX_LIFETIME", 5, time.Minute),

		StorageDir:          env.GetString("STORAGE_DIR", filepath.Join(dataDir, "store")),
		StorageIndexCacheMB: env.GetInt("STORAGE_INDEX_CACHE_MB", 64),

		ServerHost: env.GetString("SERVER_HOST", "127.0.0.1"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 5.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 10),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "keyguard"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// Validate checks the settings that must be consistent before any key is touched.
func (c *Config) Validate() error {
	usesSQL := c.WrappedKeyStore == StorePostgres || c.WrappedKeyStore == StoreMySQL

	err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.KeyAlias, validation.Required, customValidation.KeyAlias),
		validation.Field(&c.KeyProvider, validation.Required, validation.In(ProviderLocal, ProviderKMS)),
		validation.Field(&c.KeystoreDir, validation.When(c.KeyProvider == ProviderLocal, validation.Required)),
		validation.Field(&c.KeystoreAlgorithm, validation.In("aes-gcm", "chacha20-poly1305")),
		validation.Field(&c.KeystoreCredentialHash, customValidation.CredentialHash),
		validation.Field(&c.KMSKeyURI,
			validation.When(c.KeyProvider == ProviderKMS, validation.Required),
			customValidation.NoWhitespace,
			customValidation.KeyURI,
		),
		validation.Field(&c.WrappedKeyStore, validation.Required, validation.In(StoreFile, StorePostgres, StoreMySQL)),
		validation.Field(&c.WrappedKeyDir, validation.When(c.WrappedKeyStore == StoreFile, validation.Required)),
		validation.Field(&c.WrappedKeyNamespace, customValidation.KeyAlias),
		validation.Field(&c.DBConnectionString, validation.When(usesSQL, validation.Required)),
		validation.Field(&c.StorageDir, validation.Required),
		validation.Field(&c.StorageIndexCacheMB, validation.Min(1)),
		validation.Field(&c.ServerPort, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.MetricsPort, validation.When(c.MetricsEnabled, validation.Min(1), validation.Max(65535))),
	)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GetGinMode returns "debug" for the debug log level and "release" otherwise.
func (c *Config) GetGinMode() string {
	if c.LogLevel == "debug" {
		return "debug"
	}
	return "release"
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "keyguard")
	}
	return ".keyguard"
}

// loadDotEnv loads the first .env found walking up from the working directory.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
