package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Addr        string
	Storage     string
	PostsFile   string
	SQLitePath  string
	DatabaseURL string
	SiteTitle   string
	SiteBaseURL string
	LogLevel    string
	CORSOrigins []string
}

// Load reads a .env file when present and then the process environment.
// It reports whether a .env file was found so the caller can log it once the
// logger is configured.
func Load() (*Config, bool) {
	envLoaded := godotenv.Load() == nil

	cfg := &Config{
		Addr:        getEnv("ADDR", ":8080"),
		Storage:     strings.ToLower(getEnv("STORAGE", StorageFile)),
		PostsFile:   getEnv("POSTS_FILE", "blog_posts.json"),
		SQLitePath:  getEnv("SQLITE_PATH", "data/blog.db"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SiteTitle:   getEnv("SITE_TITLE", "Blog"),
		SiteBaseURL: strings.TrimRight(getEnv("SITE_BASE_URL", ""), "/"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitComma(getEnv("CORS_ORIGINS", "*")),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURLFromParts()
	}
	if cfg.SiteBaseURL == "" {
		cfg.SiteBaseURL = baseURLFromAddr(cfg.Addr)
	}
	return cfg, envLoaded
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageFile:
		if c.PostsFile == "" {
			return fmt.Errorf("POSTS_FILE must not be empty")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL (or user/password/host/port/dbname) is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q (want %s, %s or %s)", c.Storage, StorageFile, StorageSQLite, StoragePostgres)
	}
	return nil
}

// postgresURLFromParts builds a DSN from the discrete connection variables.
func postgresURLFromParts() string {
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))
	if dbHost == "" || dbName == "" {
		return ""
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require", dbUser, dbPass, dbHost, dbPort, dbName)
}

func baseURLFromAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	host, port, found := strings.Cut(addr, ":")
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	if found && port != "" {
		return "http://" + host + ":" + port
	}
	return "http://" + host
}

func splitComma(input string) []string {
	var result []string
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
