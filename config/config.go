// Package config reads the engine's environment-driven configuration:
// listen host, session registry capacity, maximum concurrent generation
// tasks, model/vocabulary paths, and log level.
//
// Grounded on the teacher's envconfig package (envconfig/config.go): the
// same Var() trim-quotes-and-whitespace helper, the same
// duration-or-seconds parsing style for *_TIMEOUT-shaped values, and the
// same slog.Level mapping for a debug/trace verbosity knob. Variable
// names are the engine's own (FORGE_*) rather than ollama's OLLAMA_*.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the engine's environment-driven knobs (SPEC_FULL.md §2
// "Config").
type Config struct {
	Host            *url.URL
	ModelPath       string
	VocabularyPath  string
	SessionCapacity int // <=0 means unbounded (spec §4.3 "bounded LRU map")
	MaxConcurrent   int
	LoadTimeout     time.Duration
	AllowedOrigins  []string
	LogLevel        slog.Level
}

// Load reads the full Config from the process environment.
func Load() Config {
	return Config{
		Host:            Host(),
		ModelPath:       Var("FORGE_MODEL"),
		VocabularyPath:  Var("FORGE_VOCAB"),
		SessionCapacity: IntVar("FORGE_SESSION_CAPACITY", 256),
		MaxConcurrent:   IntVar("FORGE_MAX_CONCURRENT", 4),
		LoadTimeout:     LoadTimeout(),
		AllowedOrigins:  AllowedOrigins(),
		LogLevel:        LogLevel(),
	}
}

// Host returns the scheme and host to listen on, configurable via
// FORGE_HOST (default http://127.0.0.1:8420).
func Host() *url.URL {
	defaultPort := "8420"

	s := strings.TrimSpace(Var("FORGE_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins returns the CORS origins to allow, configurable via
// FORGE_ORIGINS (comma-separated), plus the usual localhost defaults.
func AllowedOrigins() (origins []string) {
	if s := Var("FORGE_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}
	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
		)
	}
	return origins
}

// LoadTimeout returns the timeout for model loading, configurable via
// FORGE_LOAD_TIMEOUT. Zero or negative means unbounded.
func LoadTimeout() time.Duration {
	s := Var("FORGE_LOAD_TIMEOUT")
	if s == "" {
		return 5 * time.Minute
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second
	}
	return 5 * time.Minute
}

// LogLevel returns the slog verbosity level, configurable via
// FORGE_DEBUG (0/false = info, 1/true = debug, 2 = trace-as-debug-minus-4).
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FORGE_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil && b {
			level = slog.LevelDebug
		} else if i, err := strconv.ParseInt(s, 10, 64); err == nil && i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// IntVar reads an integer environment variable, falling back to def on
// absence or parse failure.
func IntVar(key string, def int) int {
	s := Var(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", s, "default", def)
		return def
	}
	return n
}

// Var reads an environment variable, trimming surrounding whitespace and
// matching quote characters (matches envconfig.Var's behavior for values
// set via shell profiles or .env tooling that leaves quotes in place).
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
