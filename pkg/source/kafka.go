package source

import (
	"bytes"
	"context"

	"github.com/IBM/sarama"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tjs392/otters/pkg/batch"
	"github.com/tjs392/otters/pkg/errors"
)

// KafkaConfig contains Kafka consumer configuration.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
	GroupID string   `yaml:"group_id" json:"group_id"`
}

// KafkaSource consumes JSON-encoded rows from a Kafka topic through a
// consumer group. Offsets are marked after the row has been handed to
// the pipeline, so an unconsumed row is redelivered on restart.
type KafkaSource struct {
	config KafkaConfig
	logger *zap.Logger
	group  sarama.ConsumerGroup
}

// NewKafkaSource creates a Kafka row source and connects the consumer
// group.
func NewKafkaSource(cfg KafkaConfig, logger *zap.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "kafka source requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "kafka source requires a topic")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "kafka source requires a consumer group id")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create kafka consumer group").
			WithDetail("brokers", cfg.Brokers).
			WithDetail("group_id", cfg.GroupID)
	}

	return &KafkaSource{
		config: cfg,
		logger: logger.With(zap.String("source", "kafka"), zap.String("topic", cfg.Topic)),
		group:  group,
	}, nil
}

// Read starts consuming rows from the topic until ctx is cancelled.
func (s *KafkaSource) Read(ctx context.Context) (*RowStream, error) {
	rows := make(chan batch.Row, 64)
	errs := make(chan error, 1)

	handler := &rowConsumer{rows: rows, logger: s.logger}

	go func() {
		defer close(rows)
		defer close(errs)

		for {
			// Consume returns when a rebalance happens; loop to
			// rejoin until the context ends.
			if err := s.group.Consume(ctx, []string{s.config.Topic}, handler); err != nil {
				if ctx.Err() == nil {
					errs <- errors.Wrap(err, errors.ErrorTypeConnection, "kafka consume failed").
						WithDetail("topic", s.config.Topic)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return &RowStream{Rows: rows, Errors: errs}, nil
}

// Close shuts down the consumer group.
func (s *KafkaSource) Close() error {
	return s.group.Close()
}

// rowConsumer implements sarama.ConsumerGroupHandler, decoding message
// values into rows.
type rowConsumer struct {
	rows   chan<- batch.Row
	logger *zap.Logger
}

func (c *rowConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *rowConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *rowConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		row := make(batch.Row)
		dec := gojson.NewDecoder(bytes.NewReader(msg.Value))
		dec.UseNumber()
		if err := dec.Decode(&row); err != nil {
			// Malformed message: skip and commit rather than wedging
			// the partition on it.
			c.logger.Warn("skipping malformed kafka message",
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			sess.MarkMessage(msg, "")
			continue
		}
		narrowNumbers(row)

		select {
		case c.rows <- row:
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}
