package pipeline

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/tjs392/otters/pkg/batch"
	"github.com/tjs392/otters/pkg/compression"
	"github.com/tjs392/otters/pkg/compute"
	"github.com/tjs392/otters/pkg/config"
	"github.com/tjs392/otters/pkg/errors"
	"github.com/tjs392/otters/pkg/schema"
	"github.com/tjs392/otters/pkg/sink"
	"github.com/tjs392/otters/pkg/source"
)

// FromConfig builds a runnable pipeline from a validated configuration.
func FromConfig(cfg *config.PipelineConfig, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("pipeline", cfg.Name))

	p := &Pipeline{
		name:   cfg.Name,
		logger: logger,
	}

	// Row sources get a schema-bound batcher; the parquet source is
	// already columnar and bypasses it.
	switch cfg.Source.Type {
	case config.SourceParquet:
		p.batchSource = source.NewParquetSource(cfg.Source.Path, cfg.Source.BatchSize, logger)

	default:
		s, err := buildSchema(cfg.Schema)
		if err != nil {
			return nil, err
		}

		b, err := batch.New(s, batch.Config{
			BatchSize:     cfg.Batch.Size,
			FlushInterval: time.Duration(cfg.Batch.FlushInterval),
		})
		if err != nil {
			return nil, err
		}
		p.batcher = b
		p.batchSize = cfg.Batch.Size
		if p.batchSize == 0 {
			p.batchSize = batch.DefaultBatchSize
		}

		rs, err := buildRowSource(cfg.Source, logger)
		if err != nil {
			return nil, err
		}
		p.rowSource = rs
	}

	mem := memory.NewGoAllocator()
	for _, sc := range cfg.Stages {
		stage, err := buildStage(sc, mem)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, stage)
	}

	out, err := buildSink(cfg.Sink, logger)
	if err != nil {
		return nil, err
	}
	p.out = out

	return p, nil
}

func buildSchema(fields []config.FieldConfig) (*schema.Schema, error) {
	declared := make([]schema.Field, 0, len(fields))
	for _, f := range fields {
		typ, err := schema.ParseType(f.Type)
		if err != nil {
			return nil, err
		}
		declared = append(declared, schema.Field{Name: f.Name, Type: typ})
	}
	return schema.New(declared...)
}

func buildRowSource(cfg config.SourceConfig, logger *zap.Logger) (source.RowSource, error) {
	switch cfg.Type {
	case config.SourceNDJSON:
		algo, err := compression.ParseAlgorithm(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return source.NewNDJSONSource(cfg.Path, algo, logger), nil

	case config.SourceKafka:
		return source.NewKafkaSource(source.KafkaConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			GroupID: cfg.GroupID,
		}, logger)

	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown row source type %q", cfg.Type)
	}
}

func buildStage(cfg config.StageConfig, mem memory.Allocator) (compute.Stage, error) {
	switch cfg.Type {
	case config.StageRollingMean:
		return compute.NewRollingMean(cfg.Column, cfg.Window, mem)
	case config.StageEMA:
		return compute.NewEMA(cfg.Column, cfg.Span, mem)
	case config.StageZScore:
		return compute.NewZScore(cfg.Column, cfg.Lookback, mem)
	case config.StageVWAP:
		return compute.NewVWAP(cfg.PriceColumn, cfg.VolumeColumn, cfg.Window, mem)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown stage type %q", cfg.Type)
	}
}

func buildSink(cfg config.SinkConfig, logger *zap.Logger) (sink.BatchSink, error) {
	switch cfg.Type {
	case config.SinkParquet:
		algo, err := compression.ParseAlgorithm(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return sink.NewParquetSink(cfg.Path, algo, logger)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown sink type %q", cfg.Type)
	}
}
