package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	ScanWorkers int

	VirusTotalAPIKey  string
	VirusTotalBaseURL string
	VTPollInterval    time.Duration
	VTMaxAttempts     int

	// SimSeed fixes the simulated producers' randomness; 0 seeds from the clock.
	SimSeed      int64
	RulesFile    string
	MaxFileBytes int
	AllowedTypes []string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after loading a .env file if one exists.
// A missing DATABASE_URL is returned as ErrNoDatabase alongside a usable
// config so callers can decide whether it is fatal. Any other error means the
// config is invalid.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:               getenv("APP_ENV", "development"),
		ListenAddr:        getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ScanWorkers:       getenvInt("SCAN_WORKERS", 0),
		VirusTotalAPIKey:  os.Getenv("VIRUSTOTAL_API_KEY"),
		VirusTotalBaseURL: getenv("VIRUSTOTAL_BASE_URL", "https://www.virustotal.com/api/v3"),
		VTPollInterval:    getenvDuration("VT_POLL_INTERVAL", 2*time.Second),
		VTMaxAttempts:     getenvInt("VT_MAX_ATTEMPTS", 10),
		SimSeed:           int64(getenvInt("SIM_SEED", 0)),
		RulesFile:         os.Getenv("RULES_FILE"),
		MaxFileBytes:      getenvInt("MAX_FILE_BYTES", 32<<20),
		AllowedTypes:      getenvList("ALLOWED_FILE_TYPES", []string{"apk", "aab", "ipa", "exe", "dll", "jar", "js", "php", "pdf", "zip", "doc", "docx", "sh", "ps1", "html", "txt"}),
	}
	if cfg.VTMaxAttempts < 1 {
		return cfg, fmt.Errorf("VT_MAX_ATTEMPTS must be positive, got %d", cfg.VTMaxAttempts)
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

var ErrNoDatabase = errors.New("DATABASE_URL not set")

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// getenvList splits a comma separated value; "*" means no restriction.
func getenvList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if v == "*" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, strings.TrimPrefix(p, "."))
		}
	}
	return out
}
