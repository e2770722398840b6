package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/feed"
	testlog "restaurant-orders/internal/testutil"
)

type fakeGroup struct {
	consume func(context.Context) error
	errs    chan error
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	return g.consume(ctx)
}
func (g *fakeGroup) Errors() <-chan error      { return g.errs }
func (g *fakeGroup) Close() error              { return nil }
func (g *fakeGroup) Pause(map[string][]int32)  {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll()                 {}
func (g *fakeGroup) ResumeAll()                {}

func nopHandle(context.Context, feed.Record) error { return nil }

func TestNewConsumer_SkipsWhenNoKafkaConfig(t *testing.T) {
	t.Parallel()

	rec := testlog.New()

	got, err := NewConsumer(rec.Logger(), nil, "gid", "topic", nopHandle, nil)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "", "topic", nil, nil)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "   ", nil, nil)
	require.NoError(t, err)
	require.Nil(t, got)

	var nilConsumer *Consumer
	require.NoError(t, nilConsumer.Run(context.Background()))
	require.NoError(t, nilConsumer.Close())
}

func TestNewConsumer_ReturnsErrorWhenSaramaFails(t *testing.T) {
	orig := newConsumerGroup
	t.Cleanup(func() { newConsumerGroup = orig })

	sentinel := errors.New("boom")
	newConsumerGroup = func(_ []string, _ string, _ *sarama.Config) (sarama.ConsumerGroup, error) {
		return nil, sentinel
	}

	rec := testlog.New()
	got, err := NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "topic", nopHandle, nil)
	require.ErrorIs(t, err, sentinel)
	require.Nil(t, got)
}

func TestConsumer_RunReportsErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumeErr := errors.New("broker down")
	asyncErr := errors.New("offset commit failed")
	group := &fakeGroup{errs: make(chan error, 1)}
	group.consume = func(ctx context.Context) error {
		<-ctx.Done()
		return consumeErr
	}

	var (
		mu       sync.Mutex
		reported []error
	)
	rec := testlog.New()
	c := &Consumer{
		logger:  rec.Logger(),
		group:   group,
		topic:   "orders",
		handler: nopHandle,
		onError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, err)
		},
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	group.errs <- asyncErr
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []error{asyncErr}, reported)
	require.True(t, rec.Has("kafka consumer error"))
}
