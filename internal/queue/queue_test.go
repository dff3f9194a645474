package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestConsumer(t *testing.T) (*Consumer, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewConsumer(client, "judge_queue"), client, mr
}

func TestConsumer_DispatchesDecodedJob(t *testing.T) {
	consumer, client, _ := newTestConsumer(t)

	var gotSubmissionID atomic.Value
	handled := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = consumer.Run(ctx, func(ctx context.Context, submissionID string) error {
			gotSubmissionID.Store(submissionID)
			handled <- struct{}{}
			return nil
		})
	}()

	if err := client.LPush(context.Background(), "judge_queue", `{"submission_id":"sub-1","problem_id":"p1","language":"python","code":"print(1)"}`).Err(); err != nil {
		t.Fatalf("lpush failed: %v", err)
	}

	select {
	case <-handled:
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not invoked in time")
	}

	if got := gotSubmissionID.Load(); got != "sub-1" {
		t.Fatalf("expected submission id sub-1, got %v", got)
	}
}

func TestConsumer_SurvivesHandlerError(t *testing.T) {
	consumer, client, _ := newTestConsumer(t)

	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 2)
	go func() {
		_ = consumer.Run(ctx, func(ctx context.Context, submissionID string) error {
			atomic.AddInt32(&calls, 1)
			done <- struct{}{}
			if submissionID == "bad" {
				return context.DeadlineExceeded
			}
			return nil
		})
	}()

	_ = client.LPush(context.Background(), "judge_queue", `{"submission_id":"bad"}`).Err()
	<-done
	_ = client.LPush(context.Background(), "judge_queue", `{"submission_id":"good"}`).Err()
	<-done

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected both jobs to be handled despite the first erroring, got %d calls", calls)
	}
}
