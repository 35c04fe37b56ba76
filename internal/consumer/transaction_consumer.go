package consumer

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/smallbiznis/referral/internal/config"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// kafkaConsumer is the slice of *kafka.Consumer the poll loop needs.
type kafkaConsumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	Close() error
}

// TransactionConsumer feeds transaction-completed events from the message bus
// into the same ingestion workflow the HTTP surface uses. Delivery is
// at-least-once and unordered across transactions; the commission ledger's
// idempotent append absorbs duplicates, so no consumer-side dedup is needed.
type TransactionConsumer struct {
	log      *zap.Logger
	cfg      config.KafkaConfig
	svc      referraldomain.Service
	consumer kafkaConsumer
	done     chan struct{}
	exited   chan struct{}
}

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
	Svc referraldomain.Service
}

func New(p Params) (*TransactionConsumer, error) {
	if !p.Cfg.Kafka.Enabled {
		return nil, nil
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": p.Cfg.Kafka.BootstrapServers,
		"group.id":          p.Cfg.Kafka.GroupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, err
	}

	return &TransactionConsumer{
		log:      p.Log.Named("referral.consumer"),
		cfg:      p.Cfg.Kafka,
		svc:      p.Svc,
		consumer: consumer,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}, nil
}

func (tc *TransactionConsumer) Start() error {
	if err := tc.consumer.SubscribeTopics([]string{tc.cfg.Topic}, nil); err != nil {
		return err
	}
	tc.log.Info("subscribed to topic", zap.String("topic", tc.cfg.Topic))

	go tc.poll()
	return nil
}

// Stop signals the poll loop and waits for it to return before closing the
// consumer. Close must not run concurrently with Poll on the same handle.
func (tc *TransactionConsumer) Stop() error {
	close(tc.done)
	<-tc.exited
	return tc.consumer.Close()
}

func (tc *TransactionConsumer) poll() {
	defer close(tc.exited)
	for {
		select {
		case <-tc.done:
			return
		default:
		}

		ev := tc.consumer.Poll(100)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			tc.handleMessage(e)
		case kafka.Error:
			tc.log.Error("kafka error", zap.Error(e))
		}
	}
}

func (tc *TransactionConsumer) handleMessage(msg *kafka.Message) {
	var event referraldomain.TransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed payloads can never become valid; log and move on.
		tc.log.Error("failed to unmarshal transaction event", zap.Error(err))
		return
	}

	result, err := tc.svc.ProcessTransactionEvent(context.Background(), event)
	if err != nil {
		// No ledger write succeeded at all; the broker redelivers and the
		// idempotent append makes the retry safe.
		tc.log.Error("failed to process transaction event",
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err),
		)
		return
	}

	tc.log.Debug("transaction event consumed",
		zap.String("transaction_id", event.TransactionID),
		zap.String("outcome", string(result.Outcome)),
	)
}

var Module = fx.Module("referral.consumer",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, tc *TransactionConsumer, log *zap.Logger) {
	if tc == nil {
		log.Info("kafka consumer disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			return tc.Start()
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return tc.Stop()
		},
	})
}
