package config

const (
	defaultDataDir              = "~/.local/share/gardenlog"
	defaultLogDir               = "~/.local/share/gardenlog/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRemoteTimeout        = 30
	defaultRetryCap             = 5
	defaultPollInterval         = 30
	defaultErrorRetryInterval   = 10
	defaultDedupWindowSeconds   = 300
	defaultOptimisticTTLSeconds = 600
	defaultQuotaSafetyMargin    = 0.10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Remote: Remote{
			RequestTimeout: defaultRemoteTimeout,
		},
		Sync: Sync{
			RetryCap:           defaultRetryCap,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Merge: Merge{
			DedupWindowSeconds:   defaultDedupWindowSeconds,
			OptimisticTTLSeconds: defaultOptimisticTTLSeconds,
		},
		Quota: Quota{
			SafetyMargin: defaultQuotaSafetyMargin,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
