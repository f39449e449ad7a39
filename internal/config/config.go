// Package config provides the TOML configuration shared by the captcha-lab
// commands and the classification service.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/captcha-lab/internal/spectrogram"
	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Service defaults.
const (
	DefaultSubmittedSubject   = "captcha.submitted"
	DefaultObjectStoreBucket  = "CAPTCHA_FILES"
	DefaultRequestTimeoutSecs = 30
	DefaultCaptchaType        = "image"
	DefaultThreshold          = "otsu"
	DefaultConvertWorkers     = 4
	DefaultTTSWorkers         = 1
	DefaultTTSTimeoutSecs     = 30
)

// Validation errors.
var (
	ErrMissingNATSURL    = errors.New("nats.url is required")
	ErrMissingSubject    = errors.New("nats.captcha_submitted_subject is required")
	ErrMissingBucket     = errors.New("nats.captcha_object_store_bucket is required")
	ErrMissingModelName  = errors.New("classifier.model_name is required")
	ErrMissingSymbolFile = errors.New("classifier.symbols_path is required")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	CaptchaSubmittedSubject  string `toml:"captcha_submitted_subject"`
	CaptchaObjectStoreBucket string `toml:"captcha_object_store_bucket"`
	RequestTimeoutSeconds    int    `toml:"request_timeout_seconds"`
}

// ClassifierConfig selects the model and preprocessing used for classification.
type ClassifierConfig struct {
	CaptchaType    string `toml:"captcha_type"`
	ModelName      string `toml:"model_name"`
	SymbolsPath    string `toml:"symbols_path"`
	Threshold      string `toml:"threshold"`
	// RuntimeLibrary is the onnxruntime shared library used for .onnx models.
	RuntimeLibrary string `toml:"onnxruntime_lib"`
}

// AudioConfig holds spectrogram settings. Zero values keep the defaults.
type AudioConfig struct {
	SampleRate int     `toml:"sample_rate"`
	NFFT       int     `toml:"n_fft"`
	HopLength  int     `toml:"hop_length"`
	NMels      int     `toml:"n_mels"`
	TopDB      float64 `toml:"top_db"`
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Workers    int     `toml:"workers"`
}

// TTSConfig holds audio CAPTCHA generation settings.
type TTSConfig struct {
	API            string `toml:"api"`
	APIKey         string `toml:"api_key"`
	APIKeyID       string `toml:"api_key_id"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	OutputDir      string `toml:"output_dir"`
	SymbolsPath    string `toml:"symbols_path"`
	Length         int    `toml:"length"`
	Count          int    `toml:"count"`
	Scramble       bool   `toml:"scramble"`
	Workers        int    `toml:"workers"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Classifier ClassifierConfig `toml:"classifier"`
	Audio      AudioConfig      `toml:"audio"`
	TTS        TTSConfig        `toml:"tts"`
	Paths      PathsConfig      `toml:"paths"`
}

// Default returns a configuration with every default filled in.
func Default() Config {
	return Config{
		NATS: NATSConfig{
			CaptchaSubmittedSubject:  DefaultSubmittedSubject,
			CaptchaObjectStoreBucket: DefaultObjectStoreBucket,
			RequestTimeoutSeconds:    DefaultRequestTimeoutSecs,
		},
		Classifier: ClassifierConfig{
			CaptchaType: DefaultCaptchaType,
			Threshold:   DefaultThreshold,
		},
		Audio: AudioConfig{Workers: DefaultConvertWorkers},
		TTS: TTSConfig{
			Workers:        DefaultTTSWorkers,
			TimeoutSeconds: DefaultTTSTimeoutSecs,
		},
	}
}

// Load loads the service configuration through the configurator, on top of
// the defaults.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}

// LoadFile reads a TOML file on top of the defaults. An empty path returns
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// ValidateService checks the settings the classification service needs.
func (c *Config) ValidateService() error {
	switch {
	case c.NATS.URL == "":
		return ErrMissingNATSURL
	case c.NATS.CaptchaSubmittedSubject == "":
		return ErrMissingSubject
	case c.NATS.CaptchaObjectStoreBucket == "":
		return ErrMissingBucket
	case c.Classifier.ModelName == "":
		return ErrMissingModelName
	case c.Classifier.SymbolsPath == "":
		return ErrMissingSymbolFile
	default:
		return nil
	}
}

// Settings returns spectrogram settings with configured values overriding the
// defaults. The mel upper frequency follows the sample rate.
func (a *AudioConfig) Settings() spectrogram.Settings {
	settings := spectrogram.DefaultSettings()

	if a.SampleRate > 0 {
		settings.SampleRate = a.SampleRate
		settings.FMax = float64(a.SampleRate) / 2
	}

	if a.NFFT > 0 {
		settings.NFFT = a.NFFT
	}

	if a.HopLength > 0 {
		settings.HopLength = a.HopLength
	}

	if a.NMels > 0 {
		settings.NMels = a.NMels
	}

	if a.TopDB > 0 {
		settings.TopDB = a.TopDB
	}

	if a.Width > 0 {
		settings.Width = a.Width
	}

	if a.Height > 0 {
		settings.Height = a.Height
	}

	return settings
}
