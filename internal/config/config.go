package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string

	// Document store: "github" talks to the contents API, "git"
	// commits to a local repository.
	StoreBackend string

	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	GitHubPath   string
	GitHubBranch string

	GitDir string

	// Redis - document cache, disabled when empty
	RedisURL string
	CacheTTL time.Duration

	// Meilisearch - optional, search falls back to an in-memory scan
	MeiliURL       string
	MeiliMasterKey string

	// Object storage - optional snapshot backups
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	CalendarName string
	CalendarTZ   string
}

func Load() Config {
	return Config{
		Addr:       getenv("CRM_ADDR", ":8790"),
		CORSOrigin: getenv("CRM_CORS_ORIGIN", "*"),

		StoreBackend: getenv("CRM_STORE_BACKEND", "github"),

		GitHubToken:  getenv("GITHUB_TOKEN", ""),
		GitHubOwner:  getenv("CRM_GITHUB_OWNER", ""),
		GitHubRepo:   getenv("CRM_GITHUB_REPO", ""),
		GitHubPath:   getenv("CRM_GITHUB_PATH", "data.json"),
		GitHubBranch: getenv("CRM_GITHUB_BRANCH", ""),

		GitDir: getenv("CRM_GIT_DIR", "./data/crm"),

		// Redis - empty by default, cache disabled if not configured
		RedisURL: getenv("REDIS_URL", ""),
		CacheTTL: time.Duration(getenvInt("CRM_CACHE_TTL_SECONDS", 300)) * time.Second,

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "crm-snapshots"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		CalendarName: getenv("CRM_CALENDAR_NAME", "Followups"),
		CalendarTZ:   getenv("CRM_CALENDAR_TZ", "UTC"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
