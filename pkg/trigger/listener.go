package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Handler executes one run request.
type Handler func(ctx context.Context, req Request) error

// Listener consumes run requests and handles them one at a time. A message
// is marked after its handler returns, whether or not the run succeeded,
// so a failing run is not replayed forever.
type Listener struct {
	group   sarama.ConsumerGroup
	topic   string
	handler Handler
	logger  *zap.Logger
}

// NewListener joins cfg.Group on cfg.Brokers.
func NewListener(cfg config.TriggerConfig, handler Handler, logger *zap.Logger) (*Listener, error) {
	if len(cfg.Brokers) == 0 {
		return nil, etlerrors.New(etlerrors.ErrorTypeConfig, "trigger.brokers is required")
	}
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.Group, sc)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to create Kafka consumer group")
	}
	return NewListenerWithGroup(group, cfg.Topic, handler, logger), nil
}

// NewListenerWithGroup wraps an existing consumer group.
func NewListenerWithGroup(group sarama.ConsumerGroup, topic string, handler Handler, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		group:   group,
		topic:   topic,
		handler: handler,
		logger:  logger.With(zap.String("component", "trigger_listener")),
	}
}

// Run consumes until ctx is cancelled, rejoining the group after each
// rebalance.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("listening for run requests", zap.String("topic", l.topic))
	for {
		if err := l.group.Consume(ctx, []string{l.topic}, l); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			l.logger.Error("consumer group error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (l *Listener) Close() error {
	return l.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (l *Listener) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (l *Listener) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (l *Listener) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			l.handle(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (l *Listener) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	var req Request
	if err := json.Unmarshal(message.Value, &req); err != nil {
		l.logger.Error("dropping malformed run request",
			zap.Int64("offset", message.Offset),
			zap.Error(err))
		return
	}

	l.logger.Info("run request received",
		zap.String("run_id", req.RunID),
		zap.String("step", req.Step),
		zap.String("source", req.Source))
	if err := l.handler(ctx, req); err != nil {
		l.logger.Error("requested run failed", zap.String("run_id", req.RunID), zap.Error(err))
	}
}
