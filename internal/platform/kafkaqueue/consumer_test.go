package kafkaqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader plays back a fixed sequence of fetch outcomes, then
// blocks until the context is cancelled.
type scriptedReader struct {
	mu        sync.Mutex
	fetches   []fetchOutcome
	committed []kafka.Message
}

type fetchOutcome struct {
	message kafka.Message
	err     error
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetches) > 0 {
		next := r.fetches[0]
		r.fetches = r.fetches[1:]
		r.mu.Unlock()
		return next.message, next.err
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func testConsumer() *Consumer {
	return NewConsumer([]string{"localhost:9092"}, "test-group", 1,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchLoopRetriesTransientErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{
		fetches: []fetchOutcome{
			{err: errors.New("broker hiccup")},
			{message: kafka.Message{Topic: "tasks", Value: []byte(`{"task_id": 7}`)}},
		},
	}

	jobs := make(chan job, 1)
	done := make(chan struct{})
	go func() {
		testConsumer().fetchLoop(ctx, "tasks", reader, nil, jobs)
		close(done)
	}()

	// The message behind the transient error must still arrive.
	j := <-jobs
	assert.Equal(t, []byte(`{"task_id": 7}`), j.message.Value)

	cancel()
	<-done
}

func TestFetchLoopStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &scriptedReader{}
	jobs := make(chan job)

	done := make(chan struct{})
	go func() {
		testConsumer().fetchLoop(ctx, "tasks", reader, nil, jobs)
		close(done)
	}()
	<-done
}

func TestHandleCommitsAfterHandlerError(t *testing.T) {
	ctx := context.Background()
	reader := &scriptedReader{}
	message := kafka.Message{Topic: "tasks", Offset: 3, Value: []byte("payload")}

	handled := 0
	handler := func(ctx context.Context, payload []byte) error {
		handled++
		return errors.New("handler down")
	}

	testConsumer().handle(ctx, 0, job{reader: reader, message: message, handler: handler})

	// A handler failure must not wedge the partition: the message is
	// committed and the reclamation sweep owns the retry.
	assert.Equal(t, 1, handled)
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(3), reader.committed[0].Offset)
}
