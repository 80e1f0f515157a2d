package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"` // json, text
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	StdoutTraces bool   `yaml:"stdout_traces"`
	Prometheus   bool   `yaml:"prometheus"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Engine      EngineConfig     `yaml:"engine"`
	SpeechHost  SpeechHostConfig `yaml:"speech_host"`
	Voice       VoiceConfig      `yaml:"voice"`
	Project     ProjectConfig    `yaml:"project"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// VoiceSpec names a voice offered by the mock engine.
type VoiceSpec struct {
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
}

type EngineConfig struct {
	Mode             string      `yaml:"mode"` // mock, exec, bus
	Command          string      `yaml:"command"`
	VoicesCommand    string      `yaml:"voices_command"`
	VoicesDir        string      `yaml:"voices_dir"`
	MockVoices       []VoiceSpec `yaml:"mock_voices"`
	MockDurationMS   int         `yaml:"mock_duration_ms"`
	RequestTimeoutMS int         `yaml:"request_timeout_ms"`
	HostTimeoutMS    int         `yaml:"host_timeout_ms"` // bus mode: host considered gone after this silence
}

type SpeechHostConfig struct {
	Enabled             bool   `yaml:"enabled"`
	HostID              string `yaml:"host_id"`
	HeartbeatIntervalMS int    `yaml:"heartbeat_interval_ms"`
}

type VoiceConfig struct {
	Rate        float64 `yaml:"rate"`
	Pitch       float64 `yaml:"pitch"`
	NoticeTTLMS int     `yaml:"notice_ttl_ms"`
}

type ProjectConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Components  []string `yaml:"components"`
	Notes       string   `yaml:"notes"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-narrator",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFormat:    "json",
			OTLPEndpoint: "",
			OTLPInsecure: true,
			Prometheus:   true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/narrator-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   1000,
		},
		Engine: EngineConfig{
			Mode: "mock",
			MockVoices: []VoiceSpec{
				{Name: "Alex", Language: "en-US"},
				{Name: "Kyoko", Language: "ja-JP"},
			},
			MockDurationMS:   3000,
			RequestTimeoutMS: 2000,
			HostTimeoutMS:    15000,
		},
		SpeechHost: SpeechHostConfig{
			Enabled:             false,
			HostID:              "narrator-host-1",
			HeartbeatIntervalMS: 5000,
		},
		Voice: VoiceConfig{
			Rate:        1,
			Pitch:       1,
			NoticeTTLMS: 2000,
		},
		Project: ProjectConfig{
			Name:        "loqa-narrator",
			Version:     "0.1.0",
			Description: "A small reusable component set with a voice assistant",
			Components:  []string{"Button", "Card", "Modal", "App"},
			Notes:       "The source code lives in the src folder and demonstrates use of props, state, composition, and simple styling.",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NeedsBus reports whether the configuration requires a NATS connection.
func (c Config) NeedsBus() bool {
	return c.Engine.Mode == "bus" || c.SpeechHost.Enabled
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "NARRATOR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NARRATOR_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NARRATOR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NARRATOR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NARRATOR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "NARRATOR_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NARRATOR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NARRATOR_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.StdoutTraces, "NARRATOR_TELEMETRY_STDOUT_TRACES")
	overrideBool(&cfg.Telemetry.Prometheus, "NARRATOR_TELEMETRY_PROMETHEUS")
	overrideBool(&cfg.Bus.Embedded, "NARRATOR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "NARRATOR_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "NARRATOR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "NARRATOR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "NARRATOR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "NARRATOR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "NARRATOR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "NARRATOR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "NARRATOR_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "NARRATOR_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "NARRATOR_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "NARRATOR_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "NARRATOR_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Engine.Mode, "NARRATOR_ENGINE_MODE")
	overrideString(&cfg.Engine.Command, "NARRATOR_ENGINE_COMMAND")
	overrideString(&cfg.Engine.VoicesCommand, "NARRATOR_ENGINE_VOICES_COMMAND")
	overrideString(&cfg.Engine.VoicesDir, "NARRATOR_ENGINE_VOICES_DIR")
	overrideInt(&cfg.Engine.MockDurationMS, "NARRATOR_ENGINE_MOCK_DURATION_MS")
	overrideInt(&cfg.Engine.RequestTimeoutMS, "NARRATOR_ENGINE_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Engine.HostTimeoutMS, "NARRATOR_ENGINE_HOST_TIMEOUT_MS")
	overrideBool(&cfg.SpeechHost.Enabled, "NARRATOR_SPEECH_HOST_ENABLED")
	overrideString(&cfg.SpeechHost.HostID, "NARRATOR_SPEECH_HOST_ID")
	overrideInt(&cfg.SpeechHost.HeartbeatIntervalMS, "NARRATOR_SPEECH_HOST_HEARTBEAT_INTERVAL_MS")
	overrideFloat(&cfg.Voice.Rate, "NARRATOR_VOICE_RATE")
	overrideFloat(&cfg.Voice.Pitch, "NARRATOR_VOICE_PITCH")
	overrideInt(&cfg.Voice.NoticeTTLMS, "NARRATOR_VOICE_NOTICE_TTL_MS")
	overrideString(&cfg.Project.Name, "NARRATOR_PROJECT_NAME")
	overrideString(&cfg.Project.Version, "NARRATOR_PROJECT_VERSION")
	overrideString(&cfg.Project.Description, "NARRATOR_PROJECT_DESCRIPTION")
	overrideStringSlice(&cfg.Project.Components, "NARRATOR_PROJECT_COMPONENTS")
	overrideString(&cfg.Project.Notes, "NARRATOR_PROJECT_NOTES")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be one of json|text")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.NeedsBus() {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" && cfg.EventStore.RetentionMode != "ephemeral" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.Engine.Mode {
	case "mock", "exec", "bus":
	default:
		return errors.New("engine.mode must be one of mock|exec|bus")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.Mode == "bus" && cfg.Engine.RequestTimeoutMS <= 0 {
		return errors.New("engine.request_timeout_ms must be positive when mode=bus")
	}
	if cfg.Engine.Mode == "bus" && cfg.Engine.HostTimeoutMS <= 0 {
		return errors.New("engine.host_timeout_ms must be positive when mode=bus")
	}
	if cfg.Engine.MockDurationMS < 0 {
		return errors.New("engine.mock_duration_ms must be >= 0")
	}
	if cfg.SpeechHost.Enabled {
		if cfg.Engine.Mode == "bus" {
			return errors.New("speech_host cannot serve a bus engine; use mode mock or exec")
		}
		if cfg.SpeechHost.HostID == "" {
			return errors.New("speech_host.host_id must not be empty")
		}
		if strings.ContainsAny(cfg.SpeechHost.HostID, ".*> \t") {
			return errors.New("speech_host.host_id must be a single NATS subject token")
		}
		if cfg.SpeechHost.HeartbeatIntervalMS <= 0 {
			return errors.New("speech_host.heartbeat_interval_ms must be positive")
		}
	}
	if cfg.Voice.NoticeTTLMS < 0 {
		return errors.New("voice.notice_ttl_ms must be >= 0")
	}
	return nil
}
