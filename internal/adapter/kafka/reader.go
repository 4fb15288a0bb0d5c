package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-wind-hexmap/internal/config"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageReader abstracts the kafka reader for testability.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes map requests from the source topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        MessageReader
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10 MB
	})
	return newReader(r, cfg.BatchFlushInterval, logger)
}

func newReader(r MessageReader, flushInterval time.Duration, logger *slog.Logger) *Reader {
	return &Reader{reader: r, flushInterval: flushInterval, logger: logger}
}

// ExtractBatch collects up to batchSize requests, returning early with a
// partial batch once the flush interval elapses. Offsets are not committed
// here; each request carries its own Commit.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRequest, error) {
	batch := make([]domain.RawRequest, 0, batchSize)
	deadline := time.Now().Add(r.flushInterval)

	for len(batch) < batchSize {
		timeout := time.Until(deadline)
		if timeout <= 0 {
			break
		}

		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				if len(batch) == 0 {
					return nil, ctx.Err()
				}
				break
			}
			if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
				break
			}
			return nil, err
		}
		batch = append(batch, r.mapMessageToRawRequest(msg))
	}

	if len(batch) > 0 {
		r.logger.Debug("request batch fetched", "count", len(batch))
	}
	return batch, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawRequest converts a Kafka message into a RawRequest whose
// Commit acknowledges exactly that message.
func (r *Reader) mapMessageToRawRequest(msg kafkago.Message) domain.RawRequest {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawRequest{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}
