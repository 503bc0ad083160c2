package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mehmetymw/blocksink/internal/blockmeta"
	"github.com/mehmetymw/blocksink/internal/metrics"
	"github.com/mehmetymw/blocksink/internal/types"
)

const sinkName = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink mirrors every block row to a Kafka topic, keyed by slot so that
// compaction keeps the latest version of each block.
type Sink struct {
	writer  messageWriter
	topic   string
	metrics metrics.SinkMetrics
	logger  *zap.Logger
}

type BlockMessage struct {
	blockmeta.BlockRow
	UpdatedOn time.Time `json:"updated_on"`
}

func New(brokers []string, topic string, m metrics.SinkMetrics, logger *zap.Logger) (*Sink, error) {
	logger.Info("Creating Kafka sink",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
		RequiredAcks: kafka.RequireAll,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug("Kafka writer log", zap.String("msg", fmt.Sprintf(msg, args...)))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error("Kafka writer error", zap.String("msg", fmt.Sprintf(msg, args...)))
		}),
	}

	return &Sink{writer: writer, topic: topic, metrics: m, logger: logger}, nil
}

func (s *Sink) UpdateBlockMetadata(ctx context.Context, info *types.ReplicaBlockInfo) error {
	if field, ok := blockmeta.InRange(info); !ok {
		s.logger.Error("Block metadata out of range", zap.Uint64("slot", info.Slot), zap.String("field", field))
		s.metrics.Writes(sinkName, "error").Inc()
		return fmt.Errorf("kafka: slot %d: %s out of range", info.Slot, field)
	}
	msg := BlockMessage{BlockRow: blockmeta.FromReplica(info), UpdatedOn: time.Now().UTC()}
	return s.publish(ctx, msg)
}

func (s *Sink) publish(ctx context.Context, msg BlockMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal Kafka message", zap.Error(err))
		return err
	}
	key := strconv.FormatInt(msg.Slot, 10)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	timer := s.metrics.Latency(sinkName)
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  msg.UpdatedOn,
	})
	duration := timer.ObserveDuration()

	if err != nil {
		s.logger.Error("Failed to write block to Kafka",
			zap.Error(err),
			zap.String("key", key),
			zap.String("topic", s.topic),
			zap.Duration("duration", duration))
		s.metrics.Writes(sinkName, "error").Inc()
		return fmt.Errorf("kafka: publish slot %s: %w", key, err)
	}
	s.metrics.Writes(sinkName, "ok").Inc()
	return nil
}

func (s *Sink) Close() error {
	s.logger.Info("Closing Kafka sink")
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}
