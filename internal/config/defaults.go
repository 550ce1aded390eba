package config

const (
	defaultConfigPath           = "~/.config/easel/config.toml"
	defaultBaseDir              = "~/.config/easel"
	defaultLogDir               = "~/.local/share/easel/logs"
	defaultStateDir             = "~/.local/share/easel"
	defaultAPIBind              = "127.0.0.1:7489"
	defaultServerAddress        = "127.0.0.1:8188"
	defaultRequestTimeout       = 120
	defaultQueueCapacity        = 3
	defaultPromptBaseURL        = "https://api.deepseek.com"
	defaultPromptModel          = "deepseek-chat"
	defaultPromptTimeoutSeconds = 30
	defaultBypassPhrase         = "remove clothes"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMetricsNamespace     = "easel"
	defaultPromptAPIKeyEnv      = "DEEPSEEK_API_KEY"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BaseDir:  defaultBaseDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		ComfyUI: ComfyUI{
			ServerAddress:  defaultServerAddress,
			RequestTimeout: defaultRequestTimeout,
		},
		Queue: Queue{
			Capacity: defaultQueueCapacity,
		},
		PromptEngineer: PromptEngineer{
			BaseURL:        defaultPromptBaseURL,
			Model:          defaultPromptModel,
			TimeoutSeconds: defaultPromptTimeoutSeconds,
			BypassPhrase:   defaultBypassPhrase,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobFailures:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: defaultMetricsNamespace,
		},
	}
}
