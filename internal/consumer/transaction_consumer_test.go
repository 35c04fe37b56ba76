package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/smallbiznis/referral/internal/config"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKafkaConsumer struct {
	mu       sync.Mutex
	messages []kafka.Event
	polling  bool
	closed   bool
	overlap  bool
}

func (f *fakeKafkaConsumer) SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error {
	_ = topics
	_ = rebalanceCb
	return nil
}

func (f *fakeKafkaConsumer) Poll(timeoutMs int) kafka.Event {
	_ = timeoutMs
	f.mu.Lock()
	if f.closed {
		f.overlap = true
	}
	f.polling = true
	var ev kafka.Event
	if len(f.messages) > 0 {
		ev = f.messages[0]
		f.messages = f.messages[1:]
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.polling = false
	f.mu.Unlock()
	return ev
}

func (f *fakeKafkaConsumer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polling {
		f.overlap = true
	}
	f.closed = true
	return nil
}

func (f *fakeKafkaConsumer) snapshot() (closed, overlap bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.overlap
}

type recordingService struct {
	mu     sync.Mutex
	events []referraldomain.TransactionEvent
}

func (r *recordingService) CreateLink(ctx context.Context, req referraldomain.CreateLinkRequest) (*referraldomain.CreateLinkResponse, error) {
	_ = ctx
	_ = req
	return nil, nil
}

func (r *recordingService) Redeem(ctx context.Context, code, userID string) (*referraldomain.ReferralRelationship, error) {
	_ = ctx
	_ = code
	_ = userID
	return nil, nil
}

func (r *recordingService) ProcessTransactionEvent(ctx context.Context, event referraldomain.TransactionEvent) (referraldomain.ProcessResult, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return referraldomain.ProcessResult{Outcome: referraldomain.OutcomeCommissioned}, nil
}

func (r *recordingService) GetHistory(ctx context.Context, req referraldomain.GetHistoryRequest) (*referraldomain.HistoryResponse, error) {
	_ = ctx
	_ = req
	return nil, nil
}

func (r *recordingService) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestConsumerDeliversEvents(t *testing.T) {
	payload, err := json.Marshal(referraldomain.TransactionEvent{
		TransactionID: "txn-1",
		UserID:        "user-1",
		Amount:        1000,
		Status:        "completed",
		ReferralBy:    "referrer-1",
	})
	require.NoError(t, err)

	fake := &fakeKafkaConsumer{messages: []kafka.Event{
		&kafka.Message{Value: payload},
		&kafka.Message{Value: []byte("not json")},
	}}
	svc := &recordingService{}
	tc := &TransactionConsumer{
		log:      zap.NewNop(),
		cfg:      config.KafkaConfig{Topic: "transaction.completed"},
		svc:      svc,
		consumer: fake,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	require.NoError(t, tc.Start())
	// The valid message reaches the workflow, the malformed one is dropped.
	require.Eventually(t, func() bool { return svc.eventCount() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, tc.Stop())

	r := svc
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, "txn-1", r.events[0].TransactionID)
}

func TestConsumerStopWaitsForPollLoop(t *testing.T) {
	fake := &fakeKafkaConsumer{}
	tc := &TransactionConsumer{
		log:      zap.NewNop(),
		cfg:      config.KafkaConfig{Topic: "transaction.completed"},
		svc:      &recordingService{},
		consumer: fake,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	require.NoError(t, tc.Start())
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, tc.Stop())

	closed, overlap := fake.snapshot()
	assert.True(t, closed)
	assert.False(t, overlap, "Close must not run while Poll is in flight")

	select {
	case <-tc.exited:
	default:
		t.Fatal("poll loop still running after Stop returned")
	}
}
