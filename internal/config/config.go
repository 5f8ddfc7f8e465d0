package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Audio   AudioConfig   `yaml:"audio"`
	Image   ImageConfig   `yaml:"image"`
	LLM     LLMConfig     `yaml:"llm"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Environment     string        `yaml:"environment"`
	ClientURL       string        `yaml:"client_url"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

type AudioConfig struct {
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	WhisperPath      string        `yaml:"whisper_path"`
	WhisperModelPath string        `yaml:"whisper_model_path"`
	WhisperServerURL string        `yaml:"whisper_server_url"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
}

type ImageConfig struct {
	Language                string `yaml:"language"`
	EngineMode              string `yaml:"engine_mode"`
	PreserveInterwordSpaces string `yaml:"preserve_interword_spaces"`
}

type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	URL            string        `yaml:"url"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Prompts        Prompts       `yaml:"prompts"`
}

// Prompts keeps the tutor's wording out of the request flow.
// WithDetectedText is a text/template receiving .Text and .Question.
type Prompts struct {
	System           string `yaml:"system"`
	WithDetectedText string `yaml:"with_detected_text"`
	DefaultQuestion  string `yaml:"default_question"`
}

type NotifyConfig struct {
	ListenerBuffer int    `yaml:"listener_buffer"`
	RedisURL       string `yaml:"redis_url"`
	RedisChannel   string `yaml:"redis_channel"`
}

const defaultSystemPrompt = `You are an educational assistant specializing in explaining concepts and solving problems.
Provide clear, step-by-step explanations that help students understand the underlying principles.
For math problems, show each step of the calculation.
For science concepts, use clear explanations with examples.`

func DefaultPrompts() Prompts {
	return Prompts{
		System:           defaultSystemPrompt,
		WithDetectedText: `I have the following content: "{{.Text}}". My question is: {{.Question}}`,
		DefaultQuestion:  "What is this?",
	}
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            3001,
			Environment:     "production",
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir: "./uploads",
		},
		Audio: AudioConfig{
			FFmpegPath:       "ffmpeg",
			WhisperPath:      "../whisper.cpp/main",
			WhisperModelPath: "../whisper.cpp/models/ggml-base.en.bin",
			ToolTimeout:      5 * time.Minute,
		},
		Image: ImageConfig{
			Language:                "eng",
			EngineMode:              "1",
			PreserveInterwordSpaces: "1",
		},
		LLM: LLMConfig{
			Provider:       ProviderOllama,
			URL:            "http://localhost:11434",
			Model:          "llama3",
			RequestTimeout: 2 * time.Minute,
			Prompts:        DefaultPrompts(),
		},
		Notify: NotifyConfig{
			ListenerBuffer: 32,
			RedisChannel:   "voicevision:events",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("failed to open config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	fillPromptDefaults(&cfg.LLM.Prompts)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	setString(&cfg.Server.Host, "HOST")
	setString(&cfg.Server.Environment, "NODE_ENV")
	setString(&cfg.Server.Environment, "APP_ENV")
	setString(&cfg.Server.ClientURL, "CLIENT_URL")
	setString(&cfg.Storage.UploadDir, "UPLOAD_DIR")
	setString(&cfg.Audio.FFmpegPath, "FFMPEG_PATH")
	setString(&cfg.Audio.WhisperPath, "WHISPER_PATH")
	setString(&cfg.Audio.WhisperModelPath, "WHISPER_MODEL_PATH")
	setString(&cfg.Audio.WhisperServerURL, "WHISPER_SERVER_URL")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.URL, "OLLAMA_URL")
	setString(&cfg.LLM.Model, "OLLAMA_MODEL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.Notify.RedisURL, "REDIS_URL")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func fillPromptDefaults(p *Prompts) {
	def := DefaultPrompts()
	if strings.TrimSpace(p.System) == "" {
		p.System = def.System
	}
	if strings.TrimSpace(p.WithDetectedText) == "" {
		p.WithDetectedText = def.WithDetectedText
	}
	if strings.TrimSpace(p.DefaultQuestion) == "" {
		p.DefaultQuestion = def.DefaultQuestion
	}
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	if _, err := template.New("with_detected_text").Parse(c.LLM.Prompts.WithDetectedText); err != nil {
		return fmt.Errorf("invalid with_detected_text prompt: %w", err)
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
