package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
)

const (
	MinWordsPerMinute = 10
	MaxWordsPerMinute = 200
)

type Config struct {
	Store     StoreConfig     `json:"store"`
	Providers ProvidersConfig `json:"providers"`
	Session   SessionConfig   `json:"session"`
	Channels  ChannelsConfig  `json:"channels"`
	Contacts  ContactsConfig  `json:"contacts"`
	Media     MediaConfig     `json:"media"`
	Control   ControlConfig   `json:"control"`
	Log       LogConfig       `json:"log"`
}

type StoreConfig struct {
	DBPath          string `json:"db_path" env:"CHATPILOT_STORE_DB_PATH"`
	AttachmentsHome string `json:"attachments_home" env:"CHATPILOT_STORE_ATTACHMENTS_HOME"`
	WatchChanges    bool   `json:"watch_changes" env:"CHATPILOT_STORE_WATCH_CHANGES"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
	Groq      ProviderConfig `json:"groq"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
}

type SessionConfig struct {
	OperatorName         string `json:"operator_name" env:"CHATPILOT_SESSION_OPERATOR_NAME"`
	Model                string `json:"model" env:"CHATPILOT_SESSION_MODEL"`
	VisionModel          string `json:"vision_model" env:"CHATPILOT_SESSION_VISION_MODEL"`
	TranscriptionBackend string `json:"transcription_backend" env:"CHATPILOT_SESSION_TRANSCRIPTION_BACKEND"` // "openai" or "groq"
	WordsPerMinute       int    `json:"words_per_minute" env:"CHATPILOT_SESSION_WORDS_PER_MINUTE"`
	PollIntervalSeconds  int    `json:"poll_interval_seconds" env:"CHATPILOT_SESSION_POLL_INTERVAL_SECONDS"`
	ActiveHours          string `json:"active_hours" env:"CHATPILOT_SESSION_ACTIVE_HOURS"` // cron expression, empty = always
	MaxTokens            int    `json:"max_tokens" env:"CHATPILOT_SESSION_MAX_TOKENS"`
}

type ChannelsConfig struct {
	IMessage IMessageConfig `json:"imessage"`
}

type IMessageConfig struct {
	ScriptDir          string `json:"script_dir" env:"CHATPILOT_IMESSAGE_SCRIPT_DIR"`
	SendTimeoutSeconds int    `json:"send_timeout_seconds" env:"CHATPILOT_IMESSAGE_SEND_TIMEOUT_SECONDS"`
	DryRun             bool   `json:"dry_run" env:"CHATPILOT_IMESSAGE_DRY_RUN"`
}

type ContactsConfig struct {
	DirectoryFile string   `json:"directory_file" env:"CHATPILOT_CONTACTS_DIRECTORY_FILE"`
	HelperCommand []string `json:"helper_command" env:"CHATPILOT_CONTACTS_HELPER_COMMAND" envSeparator:" "`
}

type MediaConfig struct {
	FFmpegPath string `json:"ffmpeg_path" env:"CHATPILOT_MEDIA_FFMPEG_PATH"`
	TempDir    string `json:"temp_dir" env:"CHATPILOT_MEDIA_TEMP_DIR"`
}

type ControlConfig struct {
	Listen string `json:"listen" env:"CHATPILOT_CONTROL_LISTEN"`
}

type LogConfig struct {
	Level string `json:"level" env:"CHATPILOT_LOG_LEVEL"`
	JSON  bool   `json:"json" env:"CHATPILOT_LOG_JSON"`
	File  string `json:"file" env:"CHATPILOT_LOG_FILE"`
}

// providerEnv carries the conventional API key variables. They are applied
// after the CHATPILOT_* overlay and only fill keys left empty by the file.
type providerEnv struct {
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBase    string `env:"OPENAI_BASE_URL"`
	AnthropicKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBase string `env:"ANTHROPIC_BASE_URL"`
	GroqKey       string `env:"GROQ_API_KEY"`
}

// DefaultConfig returns defaults rooted at home. The message store path is
// derived here once and passed explicitly to the store reader.
func DefaultConfig(home string) *Config {
	return &Config{
		Store: StoreConfig{
			DBPath:          filepath.Join(home, "Library", "Messages", "chat.db"),
			AttachmentsHome: home,
		},
		Session: SessionConfig{
			Model:                "gpt-4o",
			VisionModel:          "gpt-4o",
			TranscriptionBackend: "openai",
			WordsPerMinute:       80,
			PollIntervalSeconds:  5,
			MaxTokens:            1024,
		},
		Channels: ChannelsConfig{
			IMessage: IMessageConfig{
				ScriptDir:          ".",
				SendTimeoutSeconds: 10,
			},
		},
		Contacts: ContactsConfig{
			DirectoryFile: filepath.Join(home, ".chatpilot", "contacts.json"),
		},
		Media: MediaConfig{
			FFmpegPath: "ffmpeg",
			TempDir:    os.TempDir(),
		},
		Control: ControlConfig{
			Listen: "127.0.0.1:8765",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is where LoadConfig looks when no path is given.
func DefaultPath(home string) string {
	return filepath.Join(home, ".chatpilot", "config.json")
}

// LoadConfig reads path over the defaults, then applies the environment.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	cfg := DefaultConfig(home)

	if path == "" {
		path = DefaultPath(home)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	var pe providerEnv
	if err := env.Parse(&pe); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	fill(&c.Providers.OpenAI.APIKey, pe.OpenAIKey)
	fill(&c.Providers.OpenAI.APIBase, pe.OpenAIBase)
	fill(&c.Providers.Anthropic.APIKey, pe.AnthropicKey)
	fill(&c.Providers.Anthropic.APIBase, pe.AnthropicBase)
	fill(&c.Providers.Groq.APIKey, pe.GroqKey)
	return nil
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Store.DBPath == "" {
		return errors.New("store.db_path is required")
	}
	if err := ValidateWordsPerMinute(c.Session.WordsPerMinute); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Session.PollIntervalSeconds <= 0 {
		return fmt.Errorf("session.poll_interval_seconds must be positive, got %d", c.Session.PollIntervalSeconds)
	}
	if c.Session.Model == "" {
		return errors.New("session.model is required")
	}
	if err := ValidateActiveHours(c.Session.ActiveHours); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	switch c.Session.TranscriptionBackend {
	case "", "openai", "groq":
	default:
		return fmt.Errorf("session.transcription_backend must be openai or groq, got %q", c.Session.TranscriptionBackend)
	}
	if c.Channels.IMessage.SendTimeoutSeconds < 0 {
		return errors.New("channels.imessage.send_timeout_seconds must not be negative")
	}
	return nil
}

func ValidateWordsPerMinute(wpm int) error {
	if wpm < MinWordsPerMinute || wpm > MaxWordsPerMinute {
		return fmt.Errorf("words_per_minute must be between %d and %d, got %d", MinWordsPerMinute, MaxWordsPerMinute, wpm)
	}
	return nil
}

func ValidateActiveHours(expr string) error {
	if expr == "" {
		return nil
	}
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("active_hours %q is not a valid cron expression", expr)
	}
	return nil
}
