package config

const (
	SourceCSV       = "csv"
	SourceSheetsAPI = "sheets_api"

	PublishDrive = "drive"
	PublishDir   = "dir"
)

const (
	defaultWorkDir              = "~/.local/share/reelbatch/work"
	defaultOutputDir            = "~/.local/share/reelbatch/output"
	defaultCacheDir             = "~/.cache/reelbatch/assets"
	defaultHistoryDB            = "~/.local/share/reelbatch/history.db"
	defaultCacheMaxGiB          = 5
	defaultCacheTTLHours        = 24
	defaultFetchBaseURL         = "https://drive.google.com"
	defaultFetchTimeoutSeconds  = 300
	defaultFetchConcurrency     = 3
	defaultUserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultFFmpegBinary         = "ffmpeg"
	defaultRenderTimeoutSeconds = 300
	defaultBackgroundColor      = "black"
	defaultOutputRetentionHours = 24
	defaultSelectorCSV          = ""
	defaultSelectorAPI          = "A:L"
	defaultCSVBaseURL           = "https://docs.google.com"
	defaultPublishDir           = "~/.local/share/reelbatch/public"
	defaultPublishBaseURL       = "http://localhost:3003/output"
	defaultCredentialsEnv       = "GOOGLE_CONFIG"
	defaultCron                 = "*/5 * * * *"
	defaultLogLevel             = "info"
	defaultLogFormat            = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir,
			HistoryDB: defaultHistoryDB,
		},
		Cache: Cache{
			MaxGiB:   defaultCacheMaxGiB,
			TTLHours: defaultCacheTTLHours,
		},
		Fetch: Fetch{
			BaseURL:        defaultFetchBaseURL,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			Concurrency:    defaultFetchConcurrency,
			UserAgent:      defaultUserAgent,
		},
		Render: Render{
			FFmpegBinary:         defaultFFmpegBinary,
			TimeoutSeconds:       defaultRenderTimeoutSeconds,
			BackgroundColor:      defaultBackgroundColor,
			BackgroundWidth:      OutputWidth,
			BackgroundHeight:     OutputHeight,
			OutputRetentionHours: defaultOutputRetentionHours,
		},
		Source: Source{
			Kind:       SourceCSV,
			Selector:   defaultSelectorCSV,
			CSVBaseURL: defaultCSVBaseURL,
			WriteBack:  true,
		},
		Publish: Publish{
			Kind:    PublishDir,
			Dir:     defaultPublishDir,
			BaseURL: defaultPublishBaseURL,
		},
		Google: Google{
			CredentialsEnv: defaultCredentialsEnv,
		},
		Schedule: Schedule{
			Cron: defaultCron,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
