package kafka

import (
	"context"
	"log/slog"

	"github.com/mmaneta/eki-lpr-update/internal/config"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces quarterly statements to a Kafka topic.
// It implements pipeline.StatementPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured statement topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaStatementTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishStatements serializes and publishes statements in a single
// WriteMessages call. Messages are keyed by agreement number so every
// statement of one agreement lands on the same partition.
func (w *Writer) PublishStatements(ctx context.Context, statements []domain.Statement) error {
	if len(statements) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(statements))
	for i := range statements {
		msg, err := serializeToMessage(statements[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("statements published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

// Close flushes pending messages and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Statement into a Kafka message.
func serializeToMessage(s domain.Statement) (kafkago.Message, error) {
	out, err := domain.SerializeStatement(s)
	if err != nil {
		return kafkago.Message{}, err
	}
	return toMessage(out), nil
}

// toMessage maps an OutputEvent to a Kafka message with headers in a
// stable order.
func toMessage(out domain.OutputEvent) kafkago.Message {
	msg := kafkago.Message{Key: out.Key, Value: out.Value}
	for _, k := range headerOrder {
		if v, ok := out.Headers[k]; ok {
			msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(v)})
		}
	}
	return msg
}

var headerOrder = []string{"water_year", "quarter", "compliant", "generated_at"}
