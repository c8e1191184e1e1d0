package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/keystorm/internal/event/topic"
)

func startedBus(t *testing.T) Bus {
	t.Helper()
	b := NewBus()
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Stop(ctx)
	})
	return b
}

func TestPublishSyncDelivers(t *testing.T) {
	b := startedBus(t)

	got := 0
	sub, err := b.SubscribeFunc("test.topic", func(_ context.Context, ev any) error {
		got++
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error = %v", err)
	}
	defer b.Unsubscribe(sub)

	ev := NewEvent(topic.Topic("test.topic"), "payload", "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("PublishSync() error = %v", err)
	}

	if got != 1 {
		t.Errorf("handler ran %d times, want 1", got)
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := startedBus(t)

	var topics []topic.Topic
	sub, _ := b.SubscribeFunc("buffer.content.*", func(_ context.Context, ev any) error {
		topics = append(topics, ToEnvelope(ev).Topic)
		return nil
	})
	defer b.Unsubscribe(sub)

	_ = b.PublishSync(context.Background(), NewEvent(topic.Topic("buffer.content.inserted"), 1, "t"))
	_ = b.PublishSync(context.Background(), NewEvent(topic.Topic("buffer.content.deleted"), 2, "t"))
	_ = b.PublishSync(context.Background(), NewEvent(topic.Topic("buffer.saved"), 3, "t"))

	if len(topics) != 2 {
		t.Fatalf("matched %d events, want 2", len(topics))
	}
}

func TestPriorityOrdersSyncDelivery(t *testing.T) {
	b := startedBus(t)

	var order []string
	subLow, _ := b.SubscribeFunc("t", func(context.Context, any) error {
		order = append(order, "low")
		return nil
	}, WithPriority(PriorityLow))
	defer b.Unsubscribe(subLow)

	subHigh, _ := b.SubscribeFunc("t", func(context.Context, any) error {
		order = append(order, "high")
		return nil
	}, WithPriority(PriorityHigh))
	defer b.Unsubscribe(subHigh)

	_ = b.PublishSync(context.Background(), NewEvent(topic.Topic("t"), 0, "test"))

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Errorf("delivery order = %v, want [high low]", order)
	}
}

func TestAsyncDeliveryOnWorker(t *testing.T) {
	b := startedBus(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{}, 3)

	sub, _ := b.SubscribeFunc("async.t", func(_ context.Context, ev any) error {
		mu.Lock()
		if e, ok := ev.(Event[int]); ok {
			got = append(got, e.Payload)
		}
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, WithDeliveryMode(DeliveryAsync))
	defer b.Unsubscribe(sub)

	for i := 1; i <= 3; i++ {
		if err := b.PublishAsync(context.Background(), NewEvent(topic.Topic("async.t"), i, "test")); err != nil {
			t.Fatalf("PublishAsync(%d) error = %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for async delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("async payloads = %v, want [1 2 3] in publish order", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := startedBus(t)

	count := 0
	sub, _ := b.SubscribeFunc("t", func(context.Context, any) error {
		count++
		return nil
	})

	_ = b.PublishSync(context.Background(), NewEvent(topic.Topic("t"), 0, "test"))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	_ = b.PublishSync(context.Background(), NewEvent(topic.Topic("t"), 0, "test"))

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}

	if err := b.Unsubscribe(sub); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("second Unsubscribe() = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestHandlerPanicContained(t *testing.T) {
	b := startedBus(t)

	sub, _ := b.SubscribeFunc("t", func(context.Context, any) error {
		panic("boom")
	})
	defer b.Unsubscribe(sub)

	err := b.PublishSync(context.Background(), NewEvent(topic.Topic("t"), 0, "test"))
	if !errors.Is(err, ErrHandlerPanic) {
		t.Errorf("PublishSync() = %v, want ErrHandlerPanic", err)
	}
}

func TestHandlerErrorDoesNotStarveOthers(t *testing.T) {
	b := startedBus(t)

	ran := false
	subErr, _ := b.SubscribeFunc("t", func(context.Context, any) error {
		return errors.New("handler failed")
	}, WithPriority(PriorityHigh))
	defer b.Unsubscribe(subErr)

	subOK, _ := b.SubscribeFunc("t", func(context.Context, any) error {
		ran = true
		return nil
	}, WithPriority(PriorityLow))
	defer b.Unsubscribe(subOK)

	err := b.PublishSync(context.Background(), NewEvent(topic.Topic("t"), 0, "test"))
	if err == nil {
		t.Error("PublishSync() = nil, want first handler error")
	}
	if !ran {
		t.Error("later handler did not run after earlier error")
	}
}

func TestLifecycleErrors(t *testing.T) {
	b := NewBus()

	ev := NewEvent(topic.Topic("t"), 0, "test")
	if err := b.PublishSync(context.Background(), ev); !errors.Is(err, ErrBusNotRunning) {
		t.Errorf("publish before Start = %v, want ErrBusNotRunning", err)
	}

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := b.Start(); !errors.Is(err, ErrBusAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrBusAlreadyRunning", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := b.Stop(ctx); !errors.Is(err, ErrBusNotRunning) {
		t.Errorf("second Stop() = %v, want ErrBusNotRunning", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	b := startedBus(t)

	if _, err := b.SubscribeFunc("t", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler = %v, want ErrNilHandler", err)
	}
	if _, err := b.SubscribeFunc("", func(context.Context, any) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishNonEventValue(t *testing.T) {
	b := startedBus(t)

	if err := b.PublishSync(context.Background(), "not an event"); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("PublishSync(plain string) = %v, want ErrInvalidTopic", err)
	}
}
