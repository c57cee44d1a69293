package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when neither the environment nor flags say otherwise.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultRetry       = 5
	DefaultConcurrency = 8
	DefaultExtractor   = "cambridge"
)

// Cfg holds all runtime configuration loaded from environment variables.
// Command-line flags are applied on top by the caller.
type Cfg struct {
	// HTTP
	Timeout    time.Duration // DICT2ANKI_TIMEOUT=20s (plain numbers are seconds)
	Retry      int           // DICT2ANKI_RETRY=5, attempts per request
	UserAgents []string      // DICT2ANKI_USER_AGENTS=ua1|ua2, rotated round-robin

	// Card generation
	Concurrency int    // DICT2ANKI_CONCURRENCY=8
	OutputPath  string // DICT2ANKI_OUTPUT=. (extractor name is appended)
	Extractor   string // DICT2ANKI_EXTRACTOR=cambridge

	Debug bool // DICT2ANKI_DEBUG=true
}

// Load reads .env (if present) then environment variables and returns Cfg.
func Load() (*Cfg, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	timeout, err := durationEnv("DICT2ANKI_TIMEOUT", DefaultTimeout)
	if err != nil {
		return nil, err
	}
	retry, err := positiveIntEnv("DICT2ANKI_RETRY", DefaultRetry)
	if err != nil {
		return nil, err
	}
	concurrency, err := positiveIntEnv("DICT2ANKI_CONCURRENCY", DefaultConcurrency)
	if err != nil {
		return nil, err
	}

	output := strings.TrimSpace(os.Getenv("DICT2ANKI_OUTPUT"))
	if output == "" {
		output = "."
	}
	extractor := strings.TrimSpace(os.Getenv("DICT2ANKI_EXTRACTOR"))
	if extractor == "" {
		extractor = DefaultExtractor
	}

	debugRaw := strings.TrimSpace(os.Getenv("DICT2ANKI_DEBUG"))
	debug := debugRaw == "1" || strings.EqualFold(debugRaw, "true")

	return &Cfg{
		Timeout:     timeout,
		Retry:       retry,
		UserAgents:  parseUserAgents(os.Getenv("DICT2ANKI_USER_AGENTS")),
		Concurrency: concurrency,
		OutputPath:  output,
		Extractor:   extractor,
		Debug:       debug,
	}, nil
}

// parseUserAgents splits "ua1|ua2|ua3" into trimmed, non-empty entries.
// User agents contain commas and semicolons, hence the pipe separator.
func parseUserAgents(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		raw = strconv.FormatFloat(secs, 'f', -1, 64) + "s"
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s=%q is not a positive duration", key, raw)
	}
	return d, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("config: %s=%q is not a positive integer", key, raw)
	}
	return n, nil
}
