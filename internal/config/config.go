package config

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	// Solid background resolution for rows without a background video
	OutputWidth  = 1920
	OutputHeight = 1080

	// Overlays are never scaled past the output frame
	MaxOverlayWidth  = OutputWidth
	MaxOverlayHeight = OutputHeight

	// Defaults applied to spreadsheet rows
	DefaultDurationSeconds = 20
	DefaultImageScale      = 100
	DefaultFilterColor     = "#000000"

	// Temporary directory prefix for per-row work directories
	TempDirPrefix = "row_"

	// Cache eviction drains down to this fraction of the ceiling
	CacheEvictionTarget = 0.8
)

// Paths contains the directories the batch runner reads and writes.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
	HistoryDB string `toml:"history_db"`
}

// Cache contains configuration for the downloaded asset cache.
type Cache struct {
	MaxGiB   float64 `toml:"max_gib"`
	TTLHours int     `toml:"ttl_hours"`
}

// Fetch contains configuration for remote asset downloads.
type Fetch struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Concurrency    int    `toml:"concurrency"`
	UserAgent      string `toml:"user_agent"`
}

// Render contains configuration for the ffmpeg renderer.
type Render struct {
	FFmpegBinary         string `toml:"ffmpeg_binary"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	BackgroundColor      string `toml:"background_color"`
	BackgroundWidth      int    `toml:"background_width"`
	BackgroundHeight     int    `toml:"background_height"`
	VerifyOutput         bool   `toml:"verify_output"`
	KeepOutputs          bool   `toml:"keep_outputs"`
	OutputRetentionHours int    `toml:"output_retention_hours"`
}

// Source selects where work items are read from and whether results are
// written back.
type Source struct {
	Kind          string `toml:"kind"` // "csv" or "sheets_api"
	SpreadsheetID string `toml:"spreadsheet_id"`
	Selector      string `toml:"selector"` // sheet name for csv, A1 range for sheets_api
	CSVBaseURL    string `toml:"csv_base_url"`
	SheetsBaseURL string `toml:"sheets_base_url"`
	WriteBack     bool   `toml:"write_back"`
}

// Publish selects where rendered videos are published.
type Publish struct {
	Kind          string `toml:"kind"` // "drive" or "dir"
	DriveFolderID string `toml:"drive_folder_id"`
	DriveBaseURL  string `toml:"drive_base_url"`
	Dir           string `toml:"dir"`
	BaseURL       string `toml:"base_url"`
}

// Google contains service-account credential lookup settings.
type Google struct {
	CredentialsFile string `toml:"credentials_file"`
	CredentialsEnv  string `toml:"credentials_env"`
}

// Schedule contains the recurring batch configuration.
type Schedule struct {
	Cron string `toml:"cron"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is an immutable configuration value. The With* helpers return
// modified copies; nothing in the repository mutates a Config after Load.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Cache    Cache    `toml:"cache"`
	Fetch    Fetch    `toml:"fetch"`
	Render   Render   `toml:"render"`
	Source   Source   `toml:"source"`
	Publish  Publish  `toml:"publish"`
	Google   Google   `toml:"google"`
	Schedule Schedule `toml:"schedule"`
	Logging  Logging  `toml:"logging"`
}

// Load parses the TOML file at path on top of Default(). A missing file is
// not an error when path is empty; the defaults are used as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return Config{}, err
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config")
		}
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithSource returns a copy targeting another spreadsheet and selector.
func (c Config) WithSource(spreadsheetID, selector string) Config {
	if strings.TrimSpace(spreadsheetID) != "" {
		c.Source.SpreadsheetID = strings.TrimSpace(spreadsheetID)
	}
	if strings.TrimSpace(selector) != "" {
		c.Source.Selector = strings.TrimSpace(selector)
	}
	return c
}

// WithLogging returns a copy with the given level and format; empty values
// keep the current setting.
func (c Config) WithLogging(level, format string) Config {
	if strings.TrimSpace(level) != "" {
		c.Logging.Level = strings.TrimSpace(level)
	}
	if strings.TrimSpace(format) != "" {
		c.Logging.Format = strings.TrimSpace(format)
	}
	return c
}

// WithSchedule returns a copy with another cron expression.
func (c Config) WithSchedule(expr string) Config {
	if strings.TrimSpace(expr) != "" {
		c.Schedule.Cron = strings.TrimSpace(expr)
	}
	return c
}

func (c Config) CacheMaxBytes() int64 {
	return int64(c.Cache.MaxGiB * 1024 * 1024 * 1024)
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

func (c Config) OutputRetention() time.Duration {
	return time.Duration(c.Render.OutputRetentionHours) * time.Hour
}

// EnsureDirectories creates the directories required before a batch can run.
func (c Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.CacheDir}
	if c.Publish.Kind == PublishDir {
		dirs = append(dirs, c.Publish.Dir)
	}
	if c.Paths.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %q", dir)
		}
	}
	return nil
}

// GoogleCredentials returns service-account JSON from the configured file or
// environment variable. The environment value may be raw JSON or base64.
func (c Config) GoogleCredentials() ([]byte, error) {
	if path := strings.TrimSpace(c.Google.CredentialsFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read google credentials")
		}
		return data, nil
	}
	name := strings.TrimSpace(c.Google.CredentialsEnv)
	if name == "" {
		return nil, fs.ErrNotExist
	}
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, fmt.Errorf("google credentials: environment variable %s is not set", name)
	}
	if strings.HasPrefix(raw, "{") {
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return decoded, nil
}

// ExpandPath expands a leading ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", pathValue)
	}
	return absolute, nil
}
