package config

// Queue backends.
const (
	QueueBackendSQLite = "sqlite"
	QueueBackendRedis  = "redis"
)

const (
	defaultConfigPath                    = "~/.config/mediaflow/config.toml"
	defaultDataDir                       = "~/.local/share/mediaflow"
	defaultLogDir                        = "~/.local/share/mediaflow/logs"
	defaultQueueBackend                  = QueueBackendSQLite
	defaultQueueVisibilityTimeout        = 300
	defaultRedisKeyPrefix                = "mediaflow:"
	defaultMaxConcurrentWorkflows        = 10
	defaultSchedulerConflictRetries      = 8
	defaultSchedulerConflictBackoffMS    = 20
	defaultOperatorRequestTimeout        = 30
	defaultOperatorPollInterval          = 10
	defaultNotificationRequestTimeout    = 10
	defaultCDCPollInterval               = 1
	defaultCDCBatchSize                  = 100
	defaultWorkflowQueuePollInterval     = 2
	defaultWorkflowErrorRetryInterval    = 10
	defaultWorkflowReceiveBatch          = 10
	defaultWorkflowWorkers               = 2
	defaultLogFormat                     = "console"
	defaultLogLevel                      = "info"
	minimumMaxConcurrentWorkflowsSetting = 2
)

// MinMaxConcurrentWorkflows is the lowest accepted admission limit.
const MinMaxConcurrentWorkflows = minimumMaxConcurrentWorkflowsSetting

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Queue: Queue{
			Backend:           defaultQueueBackend,
			VisibilityTimeout: defaultQueueVisibilityTimeout,
			RedisKeyPrefix:    defaultRedisKeyPrefix,
		},
		Scheduler: Scheduler{
			DefaultMaxConcurrentWorkflows: defaultMaxConcurrentWorkflows,
			ConflictRetries:               defaultSchedulerConflictRetries,
			ConflictBackoffMillis:         defaultSchedulerConflictBackoffMS,
		},
		Operators: Operators{
			RequestTimeout: defaultOperatorRequestTimeout,
			PollInterval:   defaultOperatorPollInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotificationRequestTimeout,
		},
		CDC: CDC{
			Enabled:      true,
			PollInterval: defaultCDCPollInterval,
			BatchSize:    defaultCDCBatchSize,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetryInterval,
			ReceiveBatch:       defaultWorkflowReceiveBatch,
			Workers:            defaultWorkflowWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
