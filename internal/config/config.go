// Package config loads the client configuration from defaults, an optional
// YAML file, a .env file, the environment and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AudioBackend string

const (
	AudioBackendMiniaudio AudioBackend = "miniaudio"
	AudioBackendPortaudio AudioBackend = "portaudio"
	// AudioBackendNone runs without capture or playback, questions can
	// only be typed and answers are text-only.
	AudioBackendNone AudioBackend = "none"
)

const (
	DefaultEndpoint        = "http://localhost:8080/api/answer"
	DefaultResponseTimeout = 30 * time.Second
	DefaultListenModel     = "nova-3"
	DefaultListenLanguage  = "en-US"
	DefaultVoice           = "aura-2-thalia-en"
	DefaultLogFile         = "ema-voice.log"
	DefaultEnvFile         = ".env"
)

const (
	envEndpoint        = "EMA_ANSWER_ENDPOINT"
	envAnswerAPIKey    = "EMA_ANSWER_API_KEY"
	envResponseTimeout = "EMA_RESPONSE_TIMEOUT"
	envDeepgramAPIKey  = "DEEPGRAM_API_KEY"
	envListenModel     = "EMA_STT_MODEL"
	envListenLanguage  = "EMA_STT_LANGUAGE"
	envVoice           = "EMA_TTS_VOICE"
	envAudioBackend    = "EMA_AUDIO_BACKEND"
	envLogFile         = "EMA_LOG_FILE"
	envSpeaking        = "EMA_SPEAKING"
)

type Config struct {
	Answers  AnswersConfig  `yaml:"answers" jsonschema:"description=Answer stream service"`
	Deepgram DeepgramConfig `yaml:"deepgram" jsonschema:"description=Speech recognition and synthesis"`
	Audio    AudioConfig    `yaml:"audio"`
	// Speaking enables spoken answers when a synthesizer is available
	Speaking bool   `yaml:"speaking" jsonschema:"default=true"`
	LogFile  string `yaml:"logFile" jsonschema:"description=File receiving the client log"`
}

type AnswersConfig struct {
	Endpoint        string        `yaml:"endpoint" jsonschema:"format=uri"`
	APIKey          string        `yaml:"apiKey" jsonschema:"description=Bearer token for the answer service"`
	ResponseTimeout time.Duration `yaml:"responseTimeout" jsonschema:"type=string,description=Time to wait for response headers (e.g. 30s)"`
}

type DeepgramConfig struct {
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model" jsonschema:"default=nova-3"`
	Language string `yaml:"language" jsonschema:"default=en-US"`
	Voice    string `yaml:"voice" jsonschema:"default=aura-2-thalia-en"`
}

type AudioConfig struct {
	Backend AudioBackend `yaml:"backend" jsonschema:"enum=miniaudio,enum=portaudio,enum=none"`
}

// Flags are the command line overrides, parsed with go-flags.
type Flags struct {
	ConfigFile      string        `short:"c" long:"config" description:"YAML configuration file"`
	EnvFile         string        `long:"env-file" description:"dotenv file loaded into the environment" default:".env"`
	Endpoint        string        `short:"e" long:"endpoint" description:"answer stream endpoint URL"`
	ResponseTimeout time.Duration `long:"response-timeout" description:"time to wait for the answer service to respond"`
	AudioBackend    string        `short:"a" long:"audio" description:"audio backend" choice:"miniaudio" choice:"portaudio" choice:"none"`
	Voice           string        `long:"voice" description:"Deepgram voice used for spoken answers"`
	LogFile         string        `long:"log-file" description:"file receiving the client log"`
	Mute            bool          `short:"m" long:"mute" description:"start with spoken answers muted"`
}

func Default() Config {
	return Config{
		Answers: AnswersConfig{
			Endpoint:        DefaultEndpoint,
			ResponseTimeout: DefaultResponseTimeout,
		},
		Deepgram: DeepgramConfig{
			Model:    DefaultListenModel,
			Language: DefaultListenLanguage,
			Voice:    DefaultVoice,
		},
		Audio:    AudioConfig{Backend: AudioBackendMiniaudio},
		Speaking: true,
		LogFile:  DefaultLogFile,
	}
}

// Load builds the configuration for flags.
func Load(flags Flags) (Config, error) {
	cfg := Default()

	if flags.ConfigFile != "" {
		if err := cfg.loadFile(flags.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	envFile := flags.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, target *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}

	setString(envEndpoint, &c.Answers.Endpoint)
	setString(envAnswerAPIKey, &c.Answers.APIKey)
	setString(envDeepgramAPIKey, &c.Deepgram.APIKey)
	setString(envListenModel, &c.Deepgram.Model)
	setString(envListenLanguage, &c.Deepgram.Language)
	setString(envVoice, &c.Deepgram.Voice)
	setString(envLogFile, &c.LogFile)

	var backend string
	setString(envAudioBackend, &backend)
	if backend != "" {
		c.Audio.Backend = AudioBackend(backend)
	}

	if value, ok := lookup(envResponseTimeout); ok && value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envResponseTimeout, err)
		}
		c.Answers.ResponseTimeout = timeout
	}
	if value, ok := lookup(envSpeaking); ok && value != "" {
		speaking, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envSpeaking, err)
		}
		c.Speaking = speaking
	}

	return nil
}

func (c *Config) applyFlags(flags Flags) {
	if flags.Endpoint != "" {
		c.Answers.Endpoint = flags.Endpoint
	}
	if flags.ResponseTimeout > 0 {
		c.Answers.ResponseTimeout = flags.ResponseTimeout
	}
	if flags.AudioBackend != "" {
		c.Audio.Backend = AudioBackend(flags.AudioBackend)
	}
	if flags.Voice != "" {
		c.Deepgram.Voice = flags.Voice
	}
	if flags.LogFile != "" {
		c.LogFile = flags.LogFile
	}
	if flags.Mute {
		c.Speaking = false
	}
}

func (c Config) Validate() error {
	endpoint, err := url.Parse(c.Answers.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return fmt.Errorf("invalid answer endpoint %q", c.Answers.Endpoint)
	}
	if c.Answers.ResponseTimeout < 0 {
		return fmt.Errorf("response timeout must not be negative, got %s", c.Answers.ResponseTimeout)
	}

	switch c.Audio.Backend {
	case AudioBackendMiniaudio, AudioBackendPortaudio, AudioBackendNone:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}

	return nil
}

// VoiceEnabled reports whether capture and synthesis can be configured.
func (c Config) VoiceEnabled() bool {
	return c.Audio.Backend != AudioBackendNone && c.Deepgram.APIKey != ""
}

// Schema describes the YAML configuration file.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-voice configuration"
	return schema
}
