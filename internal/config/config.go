package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"         validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"       validate:"required"`
	Kafka         KafkaConfig         `mapstructure:"kafka"          validate:"required"`
	ObjectStore   ObjectStoreConfig   `mapstructure:"object_store"   validate:"required"`
	ImageService  ImageServiceConfig  `mapstructure:"image_service"  validate:"required"`
	Detection     DetectionConfig     `mapstructure:"detection"      validate:"required"`
	Classifiers   ClassifiersConfig   `mapstructure:"classifiers"    validate:"required"`
	Task          TaskConfig          `mapstructure:"task"           validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// KafkaConfig configures the message queue client. ClientID identifies
// this service in broker logs; ConsumerGroupID scopes offset tracking.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"           validate:"required,min=1,dive,required"`
	ClientID        string   `mapstructure:"client_id"         validate:"required"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id" validate:"required"`
}

// ObjectStoreConfig configures access to the bucket holding original
// image files.
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	OriginalBucket  string `mapstructure:"original_bucket"   validate:"required"`
}

// ImageServiceConfig locates the source-of-truth image service.
type ImageServiceConfig struct {
	BaseURL        string `mapstructure:"base_url"        validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// BackendConfig locates one inference backend endpoint.
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"        validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// DetectionConfig routes detection tasks to backends by image type id.
// An image type id that appears in neither list has no detection backend;
// tasks for such images complete with an empty result set.
type DetectionConfig struct {
	Polyp                 BackendConfig `mapstructure:"polyp"                    validate:"required"`
	Esophagus             BackendConfig `mapstructure:"esophagus"                validate:"required"`
	PolypImageTypeIDs     []int64       `mapstructure:"polyp_image_type_ids"`
	EsophagusImageTypeIDs []int64       `mapstructure:"esophagus_image_type_ids"`

	// TriggerOnImageCreated opens a detection task for every new image the
	// consumer hears about.
	TriggerOnImageCreated bool `mapstructure:"trigger_on_image_created"`
}

// ClassifiersConfig routes classification tasks to backends by image type id.
type ClassifiersConfig struct {
	Gastric             BackendConfig `mapstructure:"gastric"                 validate:"required"`
	UpperGI             BackendConfig `mapstructure:"upper_gi"                validate:"required"`
	GastricImageTypeIDs []int64       `mapstructure:"gastric_image_type_ids"`
	UpperGIImageTypeIDs []int64       `mapstructure:"upper_gi_image_type_ids"`

	// TriggerOnImageCreated opens classification tasks for every new image,
	// one per axis listed in TriggerClassificationTypes.
	TriggerOnImageCreated      bool    `mapstructure:"trigger_on_image_created"`
	TriggerClassificationTypes []int16 `mapstructure:"trigger_classification_types" validate:"dive,gte=0,lte=2"`
}

// TaskConfig tunes the task lifecycle machinery.
type TaskConfig struct {
	// ProcessingTimeoutMinutes is how long a task may sit in PROCESSING
	// before the reclamation sweep considers its worker dead. Keep this
	// conservative (minutes, not seconds): a task claimed moments ago must
	// never be falsely reclaimed.
	ProcessingTimeoutMinutes int `mapstructure:"processing_timeout_minutes" validate:"required,gte=1"`

	// SweepSchedule is the cron expression the sweeper binary runs on.
	SweepSchedule string `mapstructure:"sweep_schedule" validate:"required"`

	// WorkerCount bounds concurrent message processing in the consumer.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gte=1"`
}
