// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/drowsewatch/internal/classifier"
)

// ErrInvalid is returned when a setting cannot be parsed or is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every runtime setting.
type Config struct {
	Camera       string
	HTTPAddr     string
	DataDir      string
	PollInterval time.Duration

	EyeClosedThreshold float64
	YawnThreshold      float64
	EyeConsecFrames    int
	YawnConsecFrames   int
	ResetOnNoFace      bool

	FaceCascade string

	LogLevel    string
	LogDir      string
	Environment string
	Tray        bool
}

// Load reads files (default ".env") if present, then the DROWSE_* variables.
// A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	dataDir, err := defaultDataDir()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		Camera:       getEnv("DROWSE_CAMERA", "0"),
		HTTPAddr:     getEnv("DROWSE_HTTP_ADDR", ":8080"),
		DataDir:      getEnv("DROWSE_DATA_DIR", dataDir),
		PollInterval: time.Duration(p.intVal("DROWSE_POLL_MS", 10)) * time.Millisecond,

		EyeClosedThreshold: p.floatVal("DROWSE_EAR_THRESHOLD", classifier.DefaultEyeClosedThreshold),
		YawnThreshold:      p.floatVal("DROWSE_MAR_THRESHOLD", classifier.DefaultYawnThreshold),
		EyeConsecFrames:    p.intVal("DROWSE_EYE_FRAMES", classifier.DefaultEyeConsecFrames),
		YawnConsecFrames:   p.intVal("DROWSE_YAWN_FRAMES", classifier.DefaultYawnConsecFrames),
		ResetOnNoFace:      p.boolVal("DROWSE_RESET_ON_NO_FACE", false),

		FaceCascade: getEnv("DROWSE_FACE_CASCADE", ""),

		LogLevel:    getEnv("DROWSE_LOG_LEVEL", "info"),
		Environment: getEnv("DROWSE_ENV", "production"),
		Tray:        p.boolVal("DROWSE_TRAY", true),
	}
	cfg.LogDir = getEnv("DROWSE_LOG_DIR", filepath.Join(cfg.DataDir, "logs"))

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that parsing alone cannot.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalid)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http address is empty", ErrInvalid)
	}
	if err := c.Classifier().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Classifier projects the detection thresholds.
func (c *Config) Classifier() classifier.Config {
	return classifier.Config{
		EyeClosedThreshold: c.EyeClosedThreshold,
		YawnThreshold:      c.YawnThreshold,
		EyeConsecFrames:    c.EyeConsecFrames,
		YawnConsecFrames:   c.YawnConsecFrames,
		ResetOnNoFace:      c.ResetOnNoFace,
	}
}

// IsTest reports whether the process runs under the test environment.
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

// DBPath is the sqlite journal location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "drowsewatch.db")
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".drowsewatch"), nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err)
	}
}

func (p *parser) intVal(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return defaultVal
	}
	return n
}

func (p *parser) floatVal(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return defaultVal
	}
	return f
}

func (p *parser) boolVal(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return defaultVal
	}
	return b
}
