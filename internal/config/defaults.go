package config

const (
	defaultDataDir               = "~/.local/share/herhaven"
	defaultLogDir                = "~/.local/share/herhaven/logs"
	defaultAPIBind               = "127.0.0.1:7588"
	defaultAPIBaseURL            = "http://127.0.0.1:8000"
	defaultSOSPath               = "/api/sos/trigger"
	defaultContactPath           = "/api/contact"
	defaultAPITimeoutSeconds     = 15
	defaultRateLimitPerMinute    = 60
	defaultRateBurst             = 5
	defaultBreakerFailures       = 5
	defaultBreakerCooldown       = 30
	defaultStorageBackend        = "sqlite"
	defaultRedisAddr             = "127.0.0.1:6379"
	defaultMaxRetries            = 3
	defaultSyncedRetentionHours  = 24
	defaultProbeIntervalSeconds  = 30
	defaultProbeTimeoutSeconds   = 5
	defaultSyncIntervalSeconds   = 60
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultStorageFileDirSegment = "queues"
	defaultSQLiteFileName        = "queues.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		API: API{
			BaseURL:            defaultAPIBaseURL,
			SOSPath:            defaultSOSPath,
			ContactPath:        defaultContactPath,
			TimeoutSeconds:     defaultAPITimeoutSeconds,
			RateLimitPerMinute: defaultRateLimitPerMinute,
			RateBurst:          defaultRateBurst,
			BreakerEnabled:     true,
			BreakerFailures:    defaultBreakerFailures,
			BreakerCooldown:    defaultBreakerCooldown,
		},
		Storage: Storage{
			Backend:   defaultStorageBackend,
			RedisAddr: defaultRedisAddr,
		},
		Queue: Queue{
			MaxRetries:           defaultMaxRetries,
			SyncedRetentionHours: defaultSyncedRetentionHours,
		},
		Connectivity: Connectivity{
			ProbeIntervalSeconds: defaultProbeIntervalSeconds,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			Netlink:              true,
		},
		Sync: Sync{
			Enabled:         true,
			IntervalSeconds: defaultSyncIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			FailedEntries:  true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
