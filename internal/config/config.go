package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir" env:"SCRATCH_DIR"`
	LogDir     string `toml:"log_dir" env:"LOG_DIR"`
	APIBind    string `toml:"api_bind" env:"API_BIND"`
	APIToken   string `toml:"api_token" env:"API_TOKEN"`
}

// Workflow contains worker loop timing and retention settings.
type Workflow struct {
	QueuePollSeconds     int  `toml:"queue_poll_seconds" env:"QUEUE_POLL_SECONDS"`
	JobCooldownMillis    int  `toml:"job_cooldown_millis" env:"JOB_COOLDOWN_MILLIS"`
	RetentionHours       int  `toml:"retention_hours" env:"RETENTION_HOURS"`
	SweepIntervalMinutes int  `toml:"sweep_interval_minutes" env:"SWEEP_INTERVAL_MINUTES"`
	KeepScratch          bool `toml:"keep_scratch" env:"KEEP_SCRATCH"`
}

// Strategy describes one acquisition attempt configuration. The list can be
// replaced from the environment with STEMFORGE_ACQUIRE_STRATEGIES_<n>_NAME and friends.
type Strategy struct {
	Name       string `toml:"name" env:"NAME"`
	Client     string `toml:"client" env:"CLIENT"`
	UseCookies bool   `toml:"use_cookies" env:"USE_COOKIES"`
}

// Acquire contains yt-dlp download settings and the fallback strategy list.
type Acquire struct {
	YtDlpBinary           string     `toml:"ytdlp_binary" env:"YTDLP_BINARY"`
	CookiesFile           string     `toml:"cookies_file" env:"COOKIES_FILE"`
	AttemptTimeoutSeconds int        `toml:"attempt_timeout_seconds" env:"ATTEMPT_TIMEOUT_SECONDS"`
	AudioFormat           string     `toml:"audio_format" env:"AUDIO_FORMAT"`
	FormatSelector        string     `toml:"format_selector" env:"FORMAT_SELECTOR"`
	Strategies            []Strategy `toml:"strategies" envPrefix:"STRATEGIES"`
}

// Locate contains search settings for free-text queries.
type Locate struct {
	SearchPrefix   string `toml:"search_prefix" env:"SEARCH_PREFIX"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// Separate contains stem separator settings.
type Separate struct {
	PythonBinary   string `toml:"python_binary" env:"PYTHON_BINARY"`
	Model          string `toml:"model" env:"MODEL"`
	Device         string `toml:"device" env:"DEVICE"`
	Shifts         int    `toml:"shifts" env:"SHIFTS"`
	TimeoutMinutes int    `toml:"timeout_minutes" env:"TIMEOUT_MINUTES"`
}

// Archive contains naming rules for the produced stem bundle.
type Archive struct {
	NameMaxLength int    `toml:"name_max_length" env:"NAME_MAX_LENGTH"`
	FallbackName  string `toml:"fallback_name" env:"FALLBACK_NAME"`
}

// S3 contains object storage publish settings.
type S3 struct {
	Bucket          string `toml:"bucket" env:"BUCKET"`
	Region          string `toml:"region" env:"REGION"`
	Endpoint        string `toml:"endpoint" env:"ENDPOINT"`
	Prefix          string `toml:"prefix" env:"PREFIX"`
	AccessKeyID     string `toml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `toml:"use_path_style" env:"USE_PATH_STYLE"`
}

// SCP contains SSH upload settings.
type SCP struct {
	Host           string `toml:"host" env:"HOST"`
	Port           int    `toml:"port" env:"PORT"`
	Username       string `toml:"username" env:"USERNAME"`
	Password       string `toml:"password" env:"PASSWORD"`
	KeyFile        string `toml:"key_file" env:"KEY_FILE"`
	KnownHosts     string `toml:"known_hosts" env:"KNOWN_HOSTS"`
	RemotePath     string `toml:"remote_path" env:"REMOTE_PATH"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// Publish selects and configures the artifact publisher.
type Publish struct {
	Backend string `toml:"backend" env:"BACKEND"`
	S3      S3     `toml:"s3" envPrefix:"S3_"`
	SCP     SCP    `toml:"scp" envPrefix:"SCP_"`
}

// Notifications contains ntfy and Redis event settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" env:"NTFY_TOPIC"`
	RequestTimeout int    `toml:"request_timeout_seconds" env:"REQUEST_TIMEOUT_SECONDS"`
	RedisAddr      string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword  string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB        int    `toml:"redis_db" env:"REDIS_DB"`
	RedisChannel   string `toml:"redis_channel" env:"REDIS_CHANNEL"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" env:"FORMAT"`
	Level         string `toml:"level" env:"LEVEL"`
	RetentionDays int    `toml:"retention_days" env:"RETENTION_DAYS"`
}

// Config encapsulates all configuration values for stemforge.
//
// Configuration sections by subsystem:
//   - Paths: scratch/log directories and API bind address
//   - Workflow: worker polling, cooldown, and job retention
//   - Acquire: yt-dlp settings and the ordered fallback strategies
//   - Locate: search prefix for free-text queries
//   - Separate: demucs model and device selection
//   - Archive: output naming rules
//   - Publish: optional S3 or SCP destination
//   - Notifications: ntfy pushes and Redis progress fan-out
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths" envPrefix:"STEMFORGE_"`
	Workflow      Workflow      `toml:"workflow" envPrefix:"STEMFORGE_WORKFLOW_"`
	Acquire       Acquire       `toml:"acquire" envPrefix:"STEMFORGE_ACQUIRE_"`
	Locate        Locate        `toml:"locate" envPrefix:"STEMFORGE_LOCATE_"`
	Separate      Separate      `toml:"separate" envPrefix:"STEMFORGE_SEPARATE_"`
	Archive       Archive       `toml:"archive" envPrefix:"STEMFORGE_ARCHIVE_"`
	Publish       Publish       `toml:"publish" envPrefix:"STEMFORGE_PUBLISH_"`
	Notifications Notifications `toml:"notifications" envPrefix:"STEMFORGE_NOTIFY_"`
	Logging       Logging       `toml:"logging" envPrefix:"STEMFORGE_LOG_"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Environment variables prefixed with STEMFORGE_
// override file values; a .env file next to the config file is read first when present.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse environment overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables already present in the process environment.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stemforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "stemforge.lock")
}

// SocketPath returns the IPC socket location used by the CLI.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "stemforge.sock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "stemforge.pid")
}

// CookiesAvailable reports whether a non-empty cookies file is configured.
func (c *Config) CookiesAvailable() bool {
	if strings.TrimSpace(c.Acquire.CookiesFile) == "" {
		return false
	}
	info, err := os.Stat(c.Acquire.CookiesFile)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// PublishEnabled reports whether a publish backend is configured.
func (c *Config) PublishEnabled() bool {
	return c.Publish.Backend != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
