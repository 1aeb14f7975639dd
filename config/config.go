// Package config loads mediakit settings.
//
// Sources, highest precedence first: command-line flags bound with
// BindFlag, environment variables, a .env file, and the YAML config file
// (mediakit.yaml by default). Commands receive the resulting *Config
// explicitly; nothing here is process-global.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given. A missing default file
// is not an error.
const DefaultFile = "mediakit.yaml"

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// EnvPrefix namespaces the generic MEDIAKIT_<SECTION>_<KEY> variables.
const EnvPrefix = "MEDIAKIT"

// Config is the resolved configuration.
type Config struct {
	OpenAI     OpenAI     `yaml:"openai"`
	ElevenLabs ElevenLabs `yaml:"elevenlabs"`
	Anthropic  Anthropic  `yaml:"anthropic"`

	Gen   ImageDefaults `yaml:"gen"`
	Edit  ImageDefaults `yaml:"edit"`
	Speak Speak         `yaml:"speak"`

	Log       Log       `yaml:"log"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// OpenAI configures the Images API client.
type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ElevenLabs configures text-to-speech.
type ElevenLabs struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Voices adds to or overrides the built-in voice table. Names are
	// lowercased.
	Voices map[string]string `yaml:"voices"`
}

// Anthropic configures the file-name describer.
type Anthropic struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ImageDefaults are per-command defaults for gen and edit.
type ImageDefaults struct {
	Size       string `yaml:"size"`
	Quality    string `yaml:"quality"`
	Format     string `yaml:"format"`
	Background string `yaml:"background"`
	OutDir     string `yaml:"out_dir"`
}

// Speak holds speak defaults.
type Speak struct {
	Voice  string `yaml:"voice"`
	OutDir string `yaml:"out_dir"`
	// Player is a command line such as "mpv --no-video".
	Player string `yaml:"player"`
}

// Log configures the logger package.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Telemetry configures tracing and metrics export.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	MetricsFile  string `yaml:"metrics_file"`
}

// envBindings maps config keys to the conventional variables each
// provider SDK reads. The first set variable wins.
var envBindings = map[string][]string{
	"openai.api_key":          {"OPENAI_API_KEY"},
	"openai.base_url":         {"OPENAI_BASE_URL", "OPENAI_API_BASE"},
	"elevenlabs.api_key":      {"ELEVENLABS_API_KEY"},
	"elevenlabs.base_url":     {"ELEVENLABS_BASE_URL"},
	"anthropic.api_key":       {"ANTHROPIC_API_KEY"},
	"anthropic.base_url":      {"ANTHROPIC_BASE_URL"},
	"log.level":               {"LOG_LEVEL"},
	"telemetry.otlp_endpoint": {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// ErrConfigFile wraps failures reading or parsing the YAML file.
var ErrConfigFile = errors.New("config file")

// Loader resolves a Config from its sources.
type Loader struct {
	v        *viper.Viper
	envFiles []string
}

// NewLoader creates a Loader. envFiles default to DefaultEnvFile.
func NewLoader(envFiles ...string) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	return &Loader{v: v, envFiles: envFiles}
}

// BindFlag makes flag override key when the flag is set on the command line.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the sources and returns the resolved Config. path may be
// empty, in which case DefaultFile is used if it exists.
func (l *Loader) Load(path string) (*Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}
	for key, names := range envBindings {
		if err := l.v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	values, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, err
	default:
		if err := l.v.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
		}
	}

	return l.resolve(), nil
}

// loadEnvFiles applies .env files without overriding variables already set
// in the process environment.
func (l *Loader) loadEnvFiles() error {
	for _, f := range l.envFiles {
		err := godotenv.Load(f)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("load %s: %w", f, err)
	}
	return nil
}

// readFile validates the YAML against Config and returns it as a generic
// map for viper.
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrConfigFile, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var typed Config
	if err := dec.Decode(&typed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
	}
	return values, nil
}

func (l *Loader) resolve() *Config {
	v := l.v
	return &Config{
		OpenAI: OpenAI{
			APIKey:  v.GetString("openai.api_key"),
			BaseURL: v.GetString("openai.base_url"),
		},
		ElevenLabs: ElevenLabs{
			APIKey:  v.GetString("elevenlabs.api_key"),
			BaseURL: v.GetString("elevenlabs.base_url"),
			Model:   v.GetString("elevenlabs.model"),
			Voices:  v.GetStringMapString("elevenlabs.voices"),
		},
		Anthropic: Anthropic{
			APIKey:  v.GetString("anthropic.api_key"),
			BaseURL: v.GetString("anthropic.base_url"),
			Model:   v.GetString("anthropic.model"),
		},
		Gen:  imageDefaults(v, "gen"),
		Edit: imageDefaults(v, "edit"),
		Speak: Speak{
			Voice:  v.GetString("speak.voice"),
			OutDir: v.GetString("speak.out_dir"),
			Player: v.GetString("speak.player"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Telemetry: Telemetry{
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			MetricsFile:  v.GetString("telemetry.metrics_file"),
		},
	}
}

func imageDefaults(v *viper.Viper, section string) ImageDefaults {
	return ImageDefaults{
		Size:       v.GetString(section + ".size"),
		Quality:    v.GetString(section + ".quality"),
		Format:     v.GetString(section + ".format"),
		Background: v.GetString(section + ".background"),
		OutDir:     v.GetString(section + ".out_dir"),
	}
}
