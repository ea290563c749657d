package config

const (
	defaultConfigPath              = "~/.config/stemforge/config.toml"
	defaultScratchDir              = "~/.local/share/stemforge/scratch"
	defaultLogDir                  = "~/.local/share/stemforge/logs"
	defaultAPIBind                 = "127.0.0.1:7489"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultQueuePollSeconds        = 1
	defaultJobCooldownMillis       = 500
	defaultRetentionHours          = 24
	defaultSweepIntervalMinutes    = 15
	defaultYtDlpBinary             = "yt-dlp"
	defaultAttemptTimeoutSeconds   = 300
	defaultAudioFormat             = "wav"
	defaultFormatSelector          = "bestaudio/best"
	defaultSearchPrefix            = "ytsearch1"
	defaultLocateTimeoutSeconds    = 60
	defaultPythonBinary            = "python3"
	defaultSeparateModel           = "htdemucs"
	defaultSeparateDevice          = "cpu"
	defaultSeparateShifts          = 1
	defaultSeparateTimeoutMinutes  = 60
	defaultArchiveNameMaxLength    = 100
	defaultArchiveFallbackName     = "separated_stems"
	defaultSCPPort                 = 22
	defaultSCPRemotePath           = "/tmp/"
	defaultSCPTimeoutSeconds       = 30
	defaultS3Region                = "us-east-1"
	defaultNotifyRequestTimeout    = 10
	defaultNotifyRedisChannel      = "stemforge:events"
	publishBackendS3               = "s3"
	publishBackendSCP              = "scp"
	strategyClientWeb              = "web"
	strategyClientAndroid          = "android"
	strategyClientIOS              = "ios"
	strategyClientTVEmbedded       = "tv_embedded"
	strategyNameCookiesWeb         = "cookies-web"
	strategyNameAndroid            = "android"
	strategyNameIOS                = "ios"
	strategyNameTVEmbedded         = "tv-embedded"
	strategyNameWeb                = "web"
)

// DefaultStrategies returns the acquisition fallback order used when none is configured.
// The credentialed strategy is skipped at runtime when no cookies file is usable.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: strategyNameCookiesWeb, Client: strategyClientWeb, UseCookies: true},
		{Name: strategyNameAndroid, Client: strategyClientAndroid},
		{Name: strategyNameIOS, Client: strategyClientIOS},
		{Name: strategyNameTVEmbedded, Client: strategyClientTVEmbedded},
		{Name: strategyNameWeb, Client: strategyClientWeb},
	}
}

// Default returns a Config populated with repository defaults. Acquire
// strategies stay empty so a config file's [[acquire.strategies]] list replaces
// the built-in order instead of extending it; normalization fills them in.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollSeconds:     defaultQueuePollSeconds,
			JobCooldownMillis:    defaultJobCooldownMillis,
			RetentionHours:       defaultRetentionHours,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
		},
		Acquire: Acquire{
			YtDlpBinary:           defaultYtDlpBinary,
			AttemptTimeoutSeconds: defaultAttemptTimeoutSeconds,
			AudioFormat:           defaultAudioFormat,
			FormatSelector:        defaultFormatSelector,
		},
		Locate: Locate{
			SearchPrefix:   defaultSearchPrefix,
			TimeoutSeconds: defaultLocateTimeoutSeconds,
		},
		Separate: Separate{
			PythonBinary:   defaultPythonBinary,
			Model:          defaultSeparateModel,
			Device:         defaultSeparateDevice,
			Shifts:         defaultSeparateShifts,
			TimeoutMinutes: defaultSeparateTimeoutMinutes,
		},
		Archive: Archive{
			NameMaxLength: defaultArchiveNameMaxLength,
			FallbackName:  defaultArchiveFallbackName,
		},
		Publish: Publish{
			S3: S3{
				Region: defaultS3Region,
			},
			SCP: SCP{
				Port:           defaultSCPPort,
				RemotePath:     defaultSCPRemotePath,
				TimeoutSeconds: defaultSCPTimeoutSeconds,
			},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RedisChannel:   defaultNotifyRedisChannel,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
