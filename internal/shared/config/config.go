package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Signup    SignupConfig
	Registry  RegistryConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB),
// which backs the driver change feed.
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// SignupConfig holds registration and break-glass account settings.
type SignupConfig struct {
	// AllowedDomain restricts signup emails, e.g. "korea.kr"
	AllowedDomain string
	// MasterEmail is always resolved as master_admin regardless of stored roles
	MasterEmail string
}

// RegistryConfig holds settings for the legacy motor-pool vehicle
// registry (SQL Server). Disabled by default.
type RegistryConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// VehicleTable is the table holding registered fleet vehicles
	VehicleTable string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "simplefleet"),
			Password: getEnv("DB_PASSWORD", "simplefleet"),
			Database: getEnv("DB_NAME", "simplefleet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			TokenTTLMinutes: getEnvInt("TOKEN_TTL_MINUTES", 480),
		},
		Signup: SignupConfig{
			AllowedDomain: getEnv("SIGNUP_ALLOWED_DOMAIN", "korea.kr"),
			MasterEmail:   getEnv("SIGNUP_MASTER_EMAIL", "master@korea.kr"),
		},
		Registry: RegistryConfig{
			Enabled:      getEnvBool("REGISTRY_ENABLED", false),
			Host:         getEnv("REGISTRY_HOST", "localhost"),
			Port:         getEnvInt("REGISTRY_PORT", 1433),
			User:         getEnv("REGISTRY_USER", ""),
			Password:     getEnv("REGISTRY_PASSWORD", ""),
			Database:     getEnv("REGISTRY_DB", "motorpool"),
			VehicleTable: getEnv("REGISTRY_VEHICLE_TABLE", "dbo.Vehicles"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
