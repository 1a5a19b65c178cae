// Package config loads the three configuration surfaces: the application
// settings (environment plus optional YAML file), the project frame
// configuration (JSON) and the tabular format descriptor (JSON).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the application configuration. Environment variables use the MT
// prefix and take precedence over the YAML file.
type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Batch   BatchConfig   `yaml:"batch" envconfig:"BATCH"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// BatchConfig carries the batch pipeline tunables.
type BatchConfig struct {
	// Workers is the goroutine pool size. Zero or one runs serially.
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"1" validate:"gte=0,lte=256"`

	// ChunkSize bounds how many rows are held in memory per file.
	ChunkSize int `yaml:"chunk_size" envconfig:"CHUNK_SIZE" default:"10000" validate:"gt=0"`

	// CacheSize is the per-worker rotation cache capacity.
	CacheSize int `yaml:"cache_size" envconfig:"CACHE_SIZE" default:"128" validate:"gte=0"`

	// HeaderThreshold is the non-numeric cell fraction at which the first
	// row of a tabular file is treated as a header.
	HeaderThreshold float64 `yaml:"header_threshold" envconfig:"HEADER_THRESHOLD" default:"0.6" validate:"gt=0,lte=1"`

	// PartNameMaxLen bounds part-name lines in multi-block inputs.
	PartNameMaxLen int `yaml:"part_name_max_len" envconfig:"PART_NAME_MAX_LEN" default:"20" validate:"gt=0"`

	MaxFileBytes int64 `yaml:"max_file_bytes" envconfig:"MAX_FILE_BYTES" default:"1073741824" validate:"gt=0"`
	MaxRows      int   `yaml:"max_rows" envconfig:"MAX_ROWS" default:"1000000" validate:"gt=0"`

	// LockTimeout bounds output-directory lock acquisition.
	LockTimeout time.Duration `yaml:"lock_timeout" envconfig:"LOCK_TIMEOUT" default:"30s" validate:"gt=0"`

	// PermittedRoots confines input and output paths when non-empty.
	PermittedRoots []string `yaml:"permitted_roots" envconfig:"PERMITTED_ROOTS"`

	ContinueOnError bool `yaml:"continue_on_error" envconfig:"CONTINUE_ON_ERROR"`
}

// Load reads the application configuration: environment first, then the YAML
// file at configPath (skipped when empty or absent) filling in unset fields,
// then validation.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			fileCfg, err := loadFromFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			cfg = merge(*fileCfg, cfg)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays env on top of the file config. envconfig fills defaults for
// unset variables, so file values only win where they differ from the
// defaults and no environment variable was supplied for the field.
func merge(file, env Config) Config {
	out := env

	if v, ok := os.LookupEnv("MT_LOGGING_LEVEL"); !ok || v == "" {
		if file.Logging.Level != "" {
			out.Logging.Level = file.Logging.Level
		}
	}
	if v, ok := os.LookupEnv("MT_LOGGING_FORMAT"); !ok || v == "" {
		if file.Logging.Format != "" {
			out.Logging.Format = file.Logging.Format
		}
	}
	if v, ok := os.LookupEnv("MT_LOGGING_FILE_PATH"); !ok || v == "" {
		if file.Logging.FilePath != "" {
			out.Logging.FilePath = file.Logging.FilePath
		}
	}

	if unsetEnv("MT_BATCH_WORKERS") && file.Batch.Workers != 0 {
		out.Batch.Workers = file.Batch.Workers
	}
	if unsetEnv("MT_BATCH_CHUNK_SIZE") && file.Batch.ChunkSize != 0 {
		out.Batch.ChunkSize = file.Batch.ChunkSize
	}
	if unsetEnv("MT_BATCH_CACHE_SIZE") && file.Batch.CacheSize != 0 {
		out.Batch.CacheSize = file.Batch.CacheSize
	}
	if unsetEnv("MT_BATCH_HEADER_THRESHOLD") && file.Batch.HeaderThreshold != 0 {
		out.Batch.HeaderThreshold = file.Batch.HeaderThreshold
	}
	if unsetEnv("MT_BATCH_PART_NAME_MAX_LEN") && file.Batch.PartNameMaxLen != 0 {
		out.Batch.PartNameMaxLen = file.Batch.PartNameMaxLen
	}
	if unsetEnv("MT_BATCH_MAX_FILE_BYTES") && file.Batch.MaxFileBytes != 0 {
		out.Batch.MaxFileBytes = file.Batch.MaxFileBytes
	}
	if unsetEnv("MT_BATCH_MAX_ROWS") && file.Batch.MaxRows != 0 {
		out.Batch.MaxRows = file.Batch.MaxRows
	}
	if unsetEnv("MT_BATCH_LOCK_TIMEOUT") && file.Batch.LockTimeout != 0 {
		out.Batch.LockTimeout = file.Batch.LockTimeout
	}
	if unsetEnv("MT_BATCH_PERMITTED_ROOTS") && len(file.Batch.PermittedRoots) > 0 {
		out.Batch.PermittedRoots = file.Batch.PermittedRoots
	}
	if unsetEnv("MT_BATCH_CONTINUE_ON_ERROR") && file.Batch.ContinueOnError {
		out.Batch.ContinueOnError = true
	}

	return out
}

func unsetEnv(key string) bool {
	v, ok := os.LookupEnv(key)
	return !ok || v == ""
}
