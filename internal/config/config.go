// Package config provides configuration management for clipforge.
// Values come from built-in defaults, an optional TOML file and
// CLIPFORGE_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// Default values
	DefaultPort          = 8787
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".clipforge"
	DefaultExportDirName = "exports"
	DefaultStepTimeout   = 30 * time.Minute
	DefaultMaxParallel   = 2
	DefaultImageDuration = 5.0

	// Environment variable names
	EnvConfigFile    = "CLIPFORGE_CONFIG"
	EnvPort          = "CLIPFORGE_PORT"
	EnvLogLevel      = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir       = "CLIPFORGE_DATA_DIR"
	EnvExportDir     = "CLIPFORGE_EXPORT_DIR"
	EnvFFmpegPath    = "CLIPFORGE_FFMPEG"
	EnvFFprobePath   = "CLIPFORGE_FFPROBE"
	EnvStepTimeout   = "CLIPFORGE_STEP_TIMEOUT"
	EnvMaxParallel   = "CLIPFORGE_MAX_PARALLEL"
	EnvImageDuration = "CLIPFORGE_IMAGE_DURATION"
	EnvHeadless      = "CLIPFORGE_HEADLESS"

	// Database filename
	DBFilename = "clipforge.db"

	// ConfigFilename is looked up inside the data directory.
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	WorkDir() string
	ThumbnailsDir() string
	FFmpegPath() string
	FFprobePath() string
	StepTimeout() time.Duration
	MaxParallel() int
	ImageDuration() float64
	Headless() bool
}

// EnvConfig reads configuration from a TOML file and environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	exportDir     string
	ffmpegPath    string
	ffprobePath   string
	stepTimeout   time.Duration
	maxParallel   int
	imageDuration float64
	headless      bool

	file string
}

var _ Config = (*EnvConfig)(nil)

type fileConfig struct {
	Port          int     `toml:"port"`
	LogLevel      string  `toml:"log_level"`
	DataDir       string  `toml:"data_dir"`
	ExportDir     string  `toml:"export_dir"`
	FFmpegPath    string  `toml:"ffmpeg_path"`
	FFprobePath   string  `toml:"ffprobe_path"`
	StepTimeout   string  `toml:"step_timeout"`
	MaxParallel   int     `toml:"max_parallel"`
	ImageDuration float64 `toml:"image_duration"`
	Headless      *bool   `toml:"headless"`
}

// New creates a new EnvConfig with defaults, file values and environment
// variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		stepTimeout:   DefaultStepTimeout,
		maxParallel:   DefaultMaxParallel,
		imageDuration: DefaultImageDuration,
	}

	// The data dir may be moved by env before the file is located.
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = expandTilde(dd)
	}

	path, explicit := configFilePath(cfg.dataDir)
	if path != "" {
		if err := cfg.applyFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.absDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// absDirs pins relative data and export dirs to the working directory so
// paths handed to ffmpeg resolve the same way from any list or scratch file.
func (c *EnvConfig) absDirs() error {
	for _, dir := range []*string{&c.dataDir, &c.exportDir} {
		if *dir == "" {
			continue
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("resolve directory %s: %w", *dir, err)
		}
		*dir = abs
	}
	return nil
}

func (c *EnvConfig) applyFile(path string, explicit bool) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	c.file = path

	if fc.Port != 0 {
		if err := validPort(fc.Port); err != nil {
			return fmt.Errorf("invalid port in %s: %w", path, err)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" && os.Getenv(EnvDataDir) == "" {
		c.dataDir = expandTilde(fc.DataDir)
	}
	if fc.ExportDir != "" {
		c.exportDir = expandTilde(fc.ExportDir)
	}
	if fc.FFmpegPath != "" {
		c.ffmpegPath = expandTilde(fc.FFmpegPath)
	}
	if fc.FFprobePath != "" {
		c.ffprobePath = expandTilde(fc.FFprobePath)
	}
	if fc.StepTimeout != "" {
		d, err := parseTimeout(fc.StepTimeout)
		if err != nil {
			return fmt.Errorf("invalid step_timeout in %s: %w", path, err)
		}
		c.stepTimeout = d
	}
	if fc.MaxParallel != 0 {
		if fc.MaxParallel < 1 {
			return fmt.Errorf("invalid max_parallel in %s: must be at least 1", path)
		}
		c.maxParallel = fc.MaxParallel
	}
	if fc.ImageDuration != 0 {
		if fc.ImageDuration < 0 {
			return fmt.Errorf("invalid image_duration in %s: must be positive", path)
		}
		c.imageDuration = fc.ImageDuration
	}
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if err := validPort(port); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if v := os.Getenv(EnvExportDir); v != "" {
		c.exportDir = expandTilde(v)
	}
	if v := os.Getenv(EnvFFmpegPath); v != "" {
		c.ffmpegPath = v
	}
	if v := os.Getenv(EnvFFprobePath); v != "" {
		c.ffprobePath = v
	}
	if v := os.Getenv(EnvStepTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvStepTimeout, err)
		}
		c.stepTimeout = d
	}
	if v := os.Getenv(EnvMaxParallel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s: must be a positive integer", EnvMaxParallel)
		}
		c.maxParallel = n
	}
	if v := os.Getenv(EnvImageDuration); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: must be a positive number of seconds", EnvImageDuration)
		}
		c.imageDuration = d
	}
	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = b
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir is where finished exports are written.
func (c *EnvConfig) ExportDir() string {
	if c.exportDir != "" {
		return c.exportDir
	}
	return filepath.Join(c.dataDir, DefaultExportDirName)
}

// WorkDir holds per-job scratch directories for intermediates.
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

func (c *EnvConfig) ThumbnailsDir() string {
	return filepath.Join(c.dataDir, "thumbnails")
}

// FFmpegPath is empty when the binary should be looked up on PATH.
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) StepTimeout() time.Duration {
	return c.stepTimeout
}

func (c *EnvConfig) MaxParallel() int {
	return c.maxParallel
}

func (c *EnvConfig) ImageDuration() float64 {
	return c.imageDuration
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// File returns the config file that was applied, if any.
func (c *EnvConfig) File() string {
	return c.file
}

// configFilePath reports the file to load and whether it was named
// explicitly. An explicit file that cannot be read is an error.
func configFilePath(dataDir string) (string, bool) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return expandTilde(p), true
	}
	return filepath.Join(dataDir, ConfigFilename), false
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// parseTimeout accepts Go durations ("90s", "10m") or bare seconds.
func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
