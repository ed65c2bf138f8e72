package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultBaseURL     = "http://localhost:5000"
	DefaultTimeout     = 15 * time.Second
	DefaultConcurrency = 4
	DefaultPageSize    = 10
	DefaultLogLevel    = "info"
	DefaultExchange    = "ledgeradmin"
	DefaultQueue       = "ledgeradmin_audit"
)

// Environment variable names.
const (
	EnvBaseURL  = "LEDGERADMIN_API_URL"
	EnvTimeout  = "LEDGERADMIN_API_TIMEOUT"
	EnvCacheTTL = "LEDGERADMIN_CACHE_TTL"
	EnvPageSize = "LEDGERADMIN_PAGE_SIZE"
	EnvLogLevel = "LEDGERADMIN_LOG_LEVEL"
	EnvAMQPURL  = "LEDGERADMIN_AMQP_URL"
)

// Settings is the resolved configuration.
type Settings struct {
	BaseURL     string
	Timeout     time.Duration
	Concurrency int

	// CacheTTL is the list cache time-to-live. Zero means every read is stale.
	CacheTTL time.Duration
	PageSize int

	LogLevel string
	LogFile  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Defaults returns settings with built-in values.
func Defaults() Settings {
	return Settings{
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
		Concurrency:  DefaultConcurrency,
		PageSize:     DefaultPageSize,
		LogLevel:     DefaultLogLevel,
		LogFile:      DefaultLogPath(),
		AMQPExchange: DefaultExchange,
		AMQPQueue:    DefaultQueue,
	}
}

// LoadEnvFiles loads dotenv files into the process environment. Missing files are ignored.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Resolve layers file values and then environment values over the defaults.
// lookup is usually os.LookupEnv.
func Resolve(file FileConfig, lookup func(string) (string, bool)) (Settings, error) {
	s := Defaults()
	var problems []string

	if v := file.API.BaseURL; v != nil {
		s.BaseURL = *v
	}
	if v := file.API.Timeout; v != nil {
		if d, err := time.ParseDuration(*v); err != nil {
			problems = append(problems, fmt.Sprintf("invalid api.timeout %q: %v", *v, err))
		} else {
			s.Timeout = d
		}
	}
	if v := file.API.Concurrency; v != nil {
		s.Concurrency = *v
	}
	if v := file.Cache.TTL; v != nil {
		if d, err := time.ParseDuration(*v); err != nil {
			problems = append(problems, fmt.Sprintf("invalid cache.ttl %q: %v", *v, err))
		} else {
			s.CacheTTL = d
		}
	}
	if v := file.View.PageSize; v != nil {
		s.PageSize = *v
	}
	if v := file.Log.Level; v != nil {
		s.LogLevel = *v
	}
	if v := file.Log.File; v != nil {
		s.LogFile = *v
	}
	if v := file.Audit.AMQPURL; v != nil {
		s.AMQPURL = *v
	}
	if v := file.Audit.Exchange; v != nil {
		s.AMQPExchange = *v
	}
	if v := file.Audit.Queue; v != nil {
		s.AMQPQueue = *v
	}

	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		s.BaseURL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		if d, err := time.ParseDuration(v); err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s %q: %v", EnvTimeout, v, err))
		} else {
			s.Timeout = d
		}
	}
	if v, ok := lookup(EnvCacheTTL); ok && v != "" {
		if d, err := time.ParseDuration(v); err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s %q: %v", EnvCacheTTL, v, err))
		} else {
			s.CacheTTL = d
		}
	}
	if v, ok := lookup(EnvPageSize); ok && v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s %q: must be a number", EnvPageSize, v))
		} else {
			s.PageSize = n
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		s.LogLevel = v
	}
	if v, ok := lookup(EnvAMQPURL); ok {
		s.AMQPURL = v
	}

	if len(problems) > 0 {
		return s, validationError(problems)
	}
	return s, nil
}

// Validate reports every invalid setting in one error.
func (s Settings) Validate() error {
	var problems []string

	if s.BaseURL == "" {
		problems = append(problems, "api base URL cannot be empty")
	} else if u, err := url.Parse(s.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid api base URL %q: %v", s.BaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		problems = append(problems, fmt.Sprintf("invalid api base URL scheme %q: must be http or https", u.Scheme))
	}
	if s.Timeout <= 0 {
		problems = append(problems, "api timeout must be > 0")
	}
	if s.Concurrency < 1 {
		problems = append(problems, "api concurrency must be >= 1")
	}
	if s.CacheTTL < 0 {
		problems = append(problems, "cache ttl must be >= 0")
	}
	if s.PageSize < 1 {
		problems = append(problems, "page size must be >= 1")
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level %q: must be debug, info, warn or error", s.LogLevel))
	}
	if s.AMQPURL != "" {
		if u, err := url.Parse(s.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
		}
		if s.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when an AMQP URL is set")
		}
		if s.AMQPQueue == "" {
			problems = append(problems, "AMQP queue cannot be empty when an AMQP URL is set")
		}
	}

	if len(problems) > 0 {
		return validationError(problems)
	}
	return nil
}

func validationError(problems []string) error {
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
}
