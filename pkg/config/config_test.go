package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tjs392/otters/pkg/errors"
)

func validConfig() *PipelineConfig {
	cfg := NewPipelineConfig("ticker")
	cfg.Schema = []FieldConfig{
		{Name: "symbol", Type: "string"},
		{Name: "price", Type: "float64"},
	}
	cfg.Batch = BatchConfig{Size: 500, FlushInterval: Duration(50 * time.Millisecond)}
	cfg.Source = SourceConfig{Type: SourceNDJSON, Path: "ticks.ndjson"}
	cfg.Sink = SinkConfig{Type: SinkParquet, Path: "ticks.parquet"}
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
	}{
		{"missing name", func(c *PipelineConfig) { c.Name = "" }},
		{"missing source type", func(c *PipelineConfig) { c.Source.Type = "" }},
		{"unknown source type", func(c *PipelineConfig) { c.Source.Type = "csv" }},
		{"ndjson without path", func(c *PipelineConfig) { c.Source.Path = "" }},
		{"row source without schema", func(c *PipelineConfig) { c.Schema = nil }},
		{"kafka without brokers", func(c *PipelineConfig) {
			c.Source = SourceConfig{Type: SourceKafka, Topic: "ticks", GroupID: "otters"}
		}},
		{"missing sink type", func(c *PipelineConfig) { c.Sink.Type = "" }},
		{"unknown sink type", func(c *PipelineConfig) { c.Sink.Type = "csv" }},
		{"parquet sink without path", func(c *PipelineConfig) { c.Sink.Path = "" }},
		{"unknown stage type", func(c *PipelineConfig) {
			c.Stages = []StageConfig{{Type: "median"}}
		}},
		{"rolling_mean without window", func(c *PipelineConfig) {
			c.Stages = []StageConfig{{Type: StageRollingMean, Column: "price"}}
		}},
		{"zscore with lookback 1", func(c *PipelineConfig) {
			c.Stages = []StageConfig{{Type: StageZScore, Column: "price", Lookback: 1}}
		}},
		{"vwap without volume column", func(c *PipelineConfig) {
			c.Stages = []StageConfig{{Type: StageVWAP, PriceColumn: "price", Window: 3}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestParquetSourceNeedsNoSchema(t *testing.T) {
	cfg := validConfig()
	cfg.Schema = nil
	cfg.Source = SourceConfig{Type: SourceParquet, Path: "in.parquet"}
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	content := `
name: ticker
schema:
  - name: symbol
    type: string
  - name: price
    type: float64
batch:
  size: 3
  flush_interval: 10s
source:
  type: ndjson
  path: ticks.ndjson
  compression: gzip
stages:
  - type: rolling_mean
    column: price
    window: 5
sink:
  type: parquet
  path: out.parquet
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ticker", cfg.Name)
	assert.Equal(t, 3, cfg.Batch.Size)
	assert.Equal(t, Duration(10*time.Second), cfg.Batch.FlushInterval)
	assert.Equal(t, "gzip", cfg.Source.Compression)
	require.Len(t, cfg.Stages, 1)
	assert.Equal(t, StageRollingMean, cfg.Stages[0].Type)
	assert.Equal(t, 5, cfg.Stages[0].Window)

	// Defaults survive a partial logging section.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Encoding)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("OTTERS_INPUT", "/data/ticks.ndjson")

	content := `
name: ticker
schema:
  - name: price
    type: float64
source:
  type: ndjson
  path: ${OTTERS_INPUT}
sink:
  type: parquet
  path: out.parquet
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/ticks.ndjson", cfg.Source.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Duration
		wantErr bool
	}{
		{"milliseconds", "50ms", Duration(50 * time.Millisecond), false},
		{"seconds", "10s", Duration(10 * time.Second), false},
		{"bare int is nanoseconds", "1000", Duration(1000), false},
		{"garbage", "soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := yaml.Unmarshal([]byte(tt.yaml), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := validConfig()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, got.Name)
	assert.Equal(t, cfg.Source, got.Source)
	assert.Equal(t, cfg.Batch, got.Batch)
}
