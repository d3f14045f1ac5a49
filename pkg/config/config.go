// Package config provides the YAML configuration surface for otters
// pipelines. A pipeline config declares the row schema, the batching
// thresholds, one source, an optional chain of compute stages, and one
// sink. Values of the form ${VAR} are substituted from the environment
// at load time.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tjs392/otters/pkg/errors"
)

// Duration is a time.Duration that YAML configs can spell as "50ms" or
// "10s". Bare integers are taken as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid duration").
				WithDetail("value", v)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	default:
		return errors.Newf(errors.ErrorTypeConfig, "invalid duration value %v", raw)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Source and sink type names.
const (
	SourceNDJSON  = "ndjson"
	SourceKafka   = "kafka"
	SourceParquet = "parquet"

	SinkParquet = "parquet"
)

// Stage type names.
const (
	StageRollingMean = "rolling_mean"
	StageEMA         = "ema"
	StageZScore      = "zscore"
	StageVWAP        = "vwap"
)

// PipelineConfig is the root configuration for one pipeline run.
type PipelineConfig struct {
	// Name identifies the pipeline in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Schema declares the row fields and their types
	Schema []FieldConfig `yaml:"schema" json:"schema"`

	// Batch controls the micro-batching thresholds
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Source declares where rows come from
	Source SourceConfig `yaml:"source" json:"source"`

	// Stages declares the compute stages applied to each batch, in order
	Stages []StageConfig `yaml:"stages" json:"stages"`

	// Sink declares where batches go
	Sink SinkConfig `yaml:"sink" json:"sink"`

	// Logging configures the structured logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FieldConfig declares one schema field.
type FieldConfig struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// BatchConfig contains the dual-trigger flush thresholds. Zero values
// take the batcher defaults.
type BatchConfig struct {
	Size          int      `yaml:"size" json:"size"`
	FlushInterval Duration `yaml:"flush_interval" json:"flush_interval"`
}

// SourceConfig declares the pipeline input.
type SourceConfig struct {
	Type string `yaml:"type" json:"type"`

	// Path is the input file for ndjson and parquet sources
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Compression names the stream compression of an ndjson file
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"`
	// BatchSize is the read batch size for parquet sources
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// Kafka consumer settings for kafka sources
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty" json:"topic,omitempty"`
	GroupID string   `yaml:"group_id,omitempty" json:"group_id,omitempty"`
}

// StageConfig declares one compute stage.
type StageConfig struct {
	Type string `yaml:"type" json:"type"`

	// Column is the input column for single-column stages
	Column string `yaml:"column,omitempty" json:"column,omitempty"`
	// Window is the window size for rolling_mean and vwap
	Window int `yaml:"window,omitempty" json:"window,omitempty"`
	// Span is the smoothing span for ema
	Span int `yaml:"span,omitempty" json:"span,omitempty"`
	// Lookback is the window size for zscore
	Lookback int `yaml:"lookback,omitempty" json:"lookback,omitempty"`

	// Price and volume columns for vwap
	PriceColumn  string `yaml:"price_column,omitempty" json:"price_column,omitempty"`
	VolumeColumn string `yaml:"volume_column,omitempty" json:"volume_column,omitempty"`
}

// SinkConfig declares the pipeline output.
type SinkConfig struct {
	Type        string `yaml:"type" json:"type"`
	Path        string `yaml:"path,omitempty" json:"path,omitempty"`
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
	Encoding    string `yaml:"encoding" json:"encoding"`
}

// NewPipelineConfig returns a config with defaults filled in.
func NewPipelineConfig(name string) *PipelineConfig {
	return &PipelineConfig{
		Name: name,
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks the configuration for structural problems. Threshold
// and schema-type validation proper happens in the packages that own
// those rules; this catches what would otherwise surface mid-run.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "pipeline name is required")
	}

	switch c.Source.Type {
	case SourceNDJSON:
		if c.Source.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "ndjson source requires a path")
		}
		if len(c.Schema) == 0 {
			return errors.New(errors.ErrorTypeConfig, "row sources require a schema")
		}
	case SourceKafka:
		if len(c.Source.Brokers) == 0 || c.Source.Topic == "" || c.Source.GroupID == "" {
			return errors.New(errors.ErrorTypeConfig, "kafka source requires brokers, topic and group_id")
		}
		if len(c.Schema) == 0 {
			return errors.New(errors.ErrorTypeConfig, "row sources require a schema")
		}
	case SourceParquet:
		if c.Source.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "parquet source requires a path")
		}
	case "":
		return errors.New(errors.ErrorTypeConfig, "source type is required")
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown source type %q", c.Source.Type)
	}

	for i, s := range c.Stages {
		if err := validateStage(s); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid stage").WithDetail("stage", i)
		}
	}

	switch c.Sink.Type {
	case SinkParquet:
		if c.Sink.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "parquet sink requires a path")
		}
	case "":
		return errors.New(errors.ErrorTypeConfig, "sink type is required")
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown sink type %q", c.Sink.Type)
	}

	return nil
}

func validateStage(s StageConfig) error {
	switch s.Type {
	case StageRollingMean:
		if s.Column == "" || s.Window < 1 {
			return errors.New(errors.ErrorTypeConfig, "rolling_mean requires column and window")
		}
	case StageEMA:
		if s.Column == "" || s.Span < 1 {
			return errors.New(errors.ErrorTypeConfig, "ema requires column and span")
		}
	case StageZScore:
		if s.Column == "" || s.Lookback < 2 {
			return errors.New(errors.ErrorTypeConfig, "zscore requires column and lookback >= 2")
		}
	case StageVWAP:
		if s.PriceColumn == "" || s.VolumeColumn == "" || s.Window < 1 {
			return errors.New(errors.ErrorTypeConfig, "vwap requires price_column, volume_column and window")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown stage type %q", s.Type)
	}
	return nil
}
