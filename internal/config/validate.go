package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

func (c *Config) normalize() error {
	var err error
	for _, p := range []struct {
		name  string
		value *string
	}{
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.cache_dir", &c.Paths.CacheDir},
		{"paths.history_db", &c.Paths.HistoryDB},
		{"publish.dir", &c.Publish.Dir},
		{"google.credentials_file", &c.Google.CredentialsFile},
	} {
		if *p.value, err = ExpandPath(strings.TrimSpace(*p.value)); err != nil {
			return errors.Wrap(err, p.name)
		}
	}

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	c.Publish.Kind = strings.ToLower(strings.TrimSpace(c.Publish.Kind))
	if c.Source.Kind == SourceSheetsAPI && strings.TrimSpace(c.Source.Selector) == "" {
		c.Source.Selector = defaultSelectorAPI
	}
	c.Publish.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.BaseURL), "/")
	return nil
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV, SourceSheetsAPI:
	default:
		return fmt.Errorf("source.kind: unsupported value %q (supported: %s, %s)", c.Source.Kind, SourceCSV, SourceSheetsAPI)
	}
	switch c.Publish.Kind {
	case PublishDrive:
		if strings.TrimSpace(c.Publish.DriveFolderID) == "" {
			return fmt.Errorf("publish.drive_folder_id is required when publish.kind is %q", PublishDrive)
		}
	case PublishDir:
		if c.Publish.Dir == "" {
			return fmt.Errorf("publish.dir is required when publish.kind is %q", PublishDir)
		}
		if filepath.Clean(c.Publish.Dir) == filepath.Clean(c.Paths.OutputDir) {
			return fmt.Errorf("publish.dir must differ from paths.output_dir (%s); rendered files are removed after publishing", c.Paths.OutputDir)
		}
	default:
		return fmt.Errorf("publish.kind: unsupported value %q (supported: %s, %s)", c.Publish.Kind, PublishDrive, PublishDir)
	}
	if c.Cache.MaxGiB <= 0 {
		return fmt.Errorf("cache.max_gib must be positive, got %v", c.Cache.MaxGiB)
	}
	if c.Cache.TTLHours <= 0 {
		return fmt.Errorf("cache.ttl_hours must be positive, got %d", c.Cache.TTLHours)
	}
	if c.Fetch.TimeoutSeconds <= 0 || c.Render.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds and render.timeout_seconds must be positive")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency)
	}
	if c.Render.BackgroundWidth <= 0 || c.Render.BackgroundHeight <= 0 {
		return fmt.Errorf("render background size must be positive, got %dx%d", c.Render.BackgroundWidth, c.Render.BackgroundHeight)
	}
	return nil
}
