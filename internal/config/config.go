package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"gopkg.in/yaml.v3"

	"dockevents/internal/filter"
	"dockevents/internal/retention"
	"dockevents/internal/store"
)

const (
	ErrCodeMissingConfig = "DOCKEVENTS_MISSING_CONFIG"
	ErrCodeInvalidConfig = "DOCKEVENTS_INVALID_CONFIG"
)

const (
	NotifierPushover = "pushover"
	NotifierTelegram = "telegram"
)

var DefaultEvents = []string{"create", "update", "destroy", "die", "kill", "pause", "unpause", "start", "stop"}

type Config struct {
	Notifier         string
	PushoverToken    string
	PushoverKey      string
	TelegramBotToken string
	TelegramChatID   string

	LimitPer    int64
	LimitAll    int64
	LimitFlush  string
	FlushWindow time.Duration

	Events      []string
	IgnoreNames []string
	IgnoreLabel string

	Debug     bool
	LogFormat string

	DockerSocket string
	LimitsDB     string
	StoreBackend string

	NotifyRatePerMinute int
	NotifyTimeout       time.Duration
	FarewellTimeout     time.Duration
	MetricsAddr         string
	BuildVersion        string
}

func (c Config) AppName() string {
	return fmt.Sprintf("Docker Events Notifier (v%s)", c.BuildVersion)
}

func (c Config) LimitsEnabled() bool {
	return c.LimitPer > 0 || c.LimitAll > 0
}

// Load reads the daemon configuration from the environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(getenv func(string) string) (Config, error) {
	cfg, err := Parse(getenv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.requireCredentials(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse reads configuration through getenv without requiring notifier
// credentials, for commands that only touch the counter store. When
// CONFIG_FILE names a YAML file its keys fill in whatever the environment
// leaves unset.
func Parse(getenv func(string) string) (Config, error) {
	src := source{env: getenv}
	if path := strings.TrimSpace(getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	cfg := Config{
		Notifier:            strings.ToLower(src.get("NOTIFIER", NotifierPushover)),
		PushoverToken:       src.get("PUSHOVER_TOKEN", ""),
		PushoverKey:         src.get("PUSHOVER_KEY", ""),
		TelegramBotToken:    src.get("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:      src.get("TELEGRAM_CHAT_ID", ""),
		LimitPer:            src.getInt("LIMIT_PER", 0),
		LimitAll:            src.getInt("LIMIT_ALL", 0),
		LimitFlush:          src.get("LIMIT_FLUSH", ""),
		Events:              src.getList("EVENTS", DefaultEvents),
		IgnoreNames:         src.getList("IGNORE_NAMES", nil),
		IgnoreLabel:         src.get("IGNORE_LABEL", filter.DefaultIgnoreLabel),
		Debug:               src.getBool("DEBUG", false),
		LogFormat:           strings.ToLower(src.get("LOG_FORMAT", "json")),
		DockerSocket:        src.get("DOCKER_SOCKET", "/var/run/docker.sock"),
		LimitsDB:            src.get("LIMITS_DB", "/limits.db"),
		StoreBackend:        strings.ToLower(src.get("STORE_BACKEND", store.BackendSQLite)),
		NotifyRatePerMinute: int(src.getInt("NOTIFY_RATE_PER_MINUTE", 60)),
		NotifyTimeout:       src.getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		FarewellTimeout:     src.getDuration("FAREWELL_TIMEOUT", 5*time.Second),
		MetricsAddr:         src.get("METRICS_ADDR", ""),
		BuildVersion:        src.get("BUILD_VERSION", "dev"),
	}
	if src.err != nil {
		return Config{}, src.err
	}

	window, err := retention.ParseWindow(cfg.LimitFlush)
	if err != nil {
		return Config{}, errors.Wrap(err, ErrCodeInvalidConfig, "invalid LIMIT_FLUSH").
			WithContext("value", cfg.LimitFlush)
	}
	cfg.FlushWindow = window

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) requireCredentials() error {
	switch c.Notifier {
	case NotifierPushover:
		if c.PushoverToken == "" || c.PushoverKey == "" {
			return errors.New(ErrCodeMissingConfig, "PUSHOVER_TOKEN and PUSHOVER_KEY are required")
		}
	case NotifierTelegram:
		if c.TelegramBotToken == "" || c.TelegramChatID == "" {
			return errors.New(ErrCodeMissingConfig, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
		}
	}
	return nil
}

func (c Config) validate() error {
	if c.Notifier != NotifierPushover && c.Notifier != NotifierTelegram {
		return errors.New(ErrCodeInvalidConfig, "unknown NOTIFIER: "+c.Notifier)
	}
	if c.LimitPer < 0 || c.LimitAll < 0 {
		return errors.New(ErrCodeInvalidConfig, "LIMIT_PER and LIMIT_ALL must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.New(ErrCodeInvalidConfig, "LOG_FORMAT must be json or text")
	}
	if c.StoreBackend != store.BackendSQLite && c.StoreBackend != store.BackendBadger {
		return errors.New(ErrCodeInvalidConfig, "unknown STORE_BACKEND: "+c.StoreBackend)
	}
	if c.LimitsEnabled() && c.LimitsDB == "" {
		return errors.New(ErrCodeMissingConfig, "LIMITS_DB is required when a limit is set")
	}
	return nil
}

// source layers the environment over the optional file and keeps the first
// parse error.
type source struct {
	env  func(string) string
	file map[string]string
	err  error
}

func (s *source) get(k, d string) string {
	if v := strings.TrimSpace(s.env(k)); v != "" {
		return v
	}
	if v := strings.TrimSpace(s.file[k]); v != "" {
		return v
	}
	return d
}

func (s *source) fail(k, v string, err error) {
	if s.err == nil {
		s.err = errors.Wrap(err, ErrCodeInvalidConfig, "invalid value for "+k).WithContext("value", v)
	}
}

func (s *source) getInt(k string, d int64) int64 {
	v := s.get(k, "")
	if v == "" {
		return d
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.fail(k, v, err)
		return d
	}
	return n
}

func (s *source) getDuration(k string, d time.Duration) time.Duration {
	v := s.get(k, "")
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		s.fail(k, v, err)
		return d
	}
	return dur
}

func (s *source) getBool(k string, d bool) bool {
	v := strings.ToLower(s.get(k, ""))
	switch v {
	case "":
		return d
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	s.fail(k, v, fmt.Errorf("not a boolean"))
	return d
}

func (s *source) getList(k string, d []string) []string {
	v := s.get(k, "")
	if v == "" {
		return d
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readFile flattens a YAML mapping into env-style keys. Lists become comma
// separated values so EVENTS may be written either way.
func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "cannot read config file").WithContext("path", path)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "cannot parse config file").WithContext("path", path)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}
