package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file. Environment variables (prefix MODEL_SERVICE_, nesting with _) take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/model-service")

	v.SetEnvPrefix("MODEL_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about. Keys without a
	// default must be bound explicitly or env-only deployments lose them.
	for _, key := range []string{
		"database.url",
		"kafka.brokers",
		"object_store.endpoint",
		"object_store.access_key_id",
		"object_store.secret_access_key",
		"object_store.use_ssl",
		"object_store.original_bucket",
		"image_service.base_url",
		"detection.polyp.base_url",
		"detection.esophagus.base_url",
		"detection.polyp_image_type_ids",
		"detection.esophagus_image_type_ids",
		"classifiers.gastric.base_url",
		"classifiers.upper_gi.base_url",
		"classifiers.gastric_image_type_ids",
		"classifiers.upper_gi_image_type_ids",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: env vars and defaults carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a Config against its struct-tag rules.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("kafka.client_id", "model_service")
	v.SetDefault("kafka.consumer_group_id", "model_service")

	v.SetDefault("image_service.timeout_seconds", 10)
	v.SetDefault("detection.polyp.timeout_seconds", 60)
	v.SetDefault("detection.esophagus.timeout_seconds", 60)
	v.SetDefault("classifiers.gastric.timeout_seconds", 60)
	v.SetDefault("classifiers.upper_gi.timeout_seconds", 60)

	v.SetDefault("detection.trigger_on_image_created", true)
	v.SetDefault("classifiers.trigger_on_image_created", true)
	v.SetDefault("classifiers.trigger_classification_types", []int16{0})

	v.SetDefault("task.processing_timeout_minutes", 15)
	v.SetDefault("task.sweep_schedule", "*/5 * * * *")
	v.SetDefault("task.worker_count", 4)
}
