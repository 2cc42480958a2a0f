// Package trigger starts pipeline runs remotely: a publisher sends a run
// request to a Kafka topic and a listener executes one run per request.
package trigger

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Request asks for a run. An empty Step means the full pipeline.
type Request struct {
	RunID       string    `json:"run_id"`
	Step        string    `json:"step,omitempty"`
	Source      string    `json:"source,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher sends run requests.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewPublisher connects a synchronous producer to cfg.Brokers.
func NewPublisher(cfg config.TriggerConfig, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, etlerrors.New(etlerrors.ErrorTypeConfig, "trigger.brokers is required")
	}
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to create Kafka producer")
	}
	return NewPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With(zap.String("component", "trigger_publisher")),
	}
}

// Publish sends req keyed by its run id.
func (p *Publisher) Publish(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(req)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to encode run request")
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(req.RunID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to publish run request")
	}

	p.logger.Info("run requested",
		zap.String("run_id", req.RunID),
		zap.String("step", req.Step),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
