package event

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/keystorm/internal/event/topic"
)

// Bus routes published events to matching subscriptions. Sync
// subscriptions run in the publisher's goroutine in priority order;
// async subscriptions are queued to a single worker goroutine, which
// preserves publish order across async handlers.
type Bus interface {
	// Publishing. Publish is an alias for PublishAsync.
	Publish(ctx context.Context, event any) error
	PublishSync(ctx context.Context, event any) error
	PublishAsync(ctx context.Context, event any) error

	// Subscription
	SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	// Lifecycle
	Start() error
	Stop(ctx context.Context) error
}

// asyncQueueSize bounds the async delivery queue; PublishAsync returns
// ErrQueueFull rather than blocking the publisher when it fills.
const asyncQueueSize = 1024

type queued struct {
	ctx      context.Context
	event    any
	handlers []HandlerFunc
}

type bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64

	running atomic.Bool
	queue   chan queued
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewBus creates a new event bus. Call Start before publishing.
func NewBus() Bus {
	return &bus{
		subs: make(map[uint64]*subscription),
	}
}

// Start launches the async delivery worker.
func (b *bus) Start() error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBusAlreadyRunning
	}

	b.queue = make(chan queued, asyncQueueSize)
	b.done = make(chan struct{})
	b.wg.Add(1)
	go b.worker()
	return nil
}

// Stop drains the async queue and stops the worker. Events published
// after Stop fail with ErrBusNotRunning.
func (b *bus) Stop(ctx context.Context) error {
	if !b.running.CompareAndSwap(true, false) {
		return ErrBusNotRunning
	}

	close(b.done)

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker delivers queued async events until Stop, then drains the queue.
func (b *bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case q := <-b.queue:
			b.deliver(q)
		case <-b.done:
			for {
				select {
				case q := <-b.queue:
					b.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (b *bus) deliver(q queued) {
	for _, h := range q.handlers {
		// Handler errors are the handler's problem; one failing
		// subscriber must not starve the rest.
		_ = safeInvoke(q.ctx, h, q.event)
	}
}

// safeInvoke runs a handler, containing panics.
func safeInvoke(ctx context.Context, h HandlerFunc, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrHandlerPanic
		}
	}()
	return h(ctx, event)
}

// SubscribeFunc registers fn for events matching topicPattern.
func (b *bus) SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	if !topicPattern.IsValid() && !patternIsValid(topicPattern) {
		return nil, ErrInvalidTopic
	}

	sub := &subscription{
		pattern:  topicPattern,
		handler:  fn,
		priority: PriorityNormal,
		mode:     DeliverySync,
		bus:      b,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub, nil
}

// patternIsValid accepts wildcard segments IsValid would reject as part
// of a concrete topic.
func patternIsValid(p topic.Topic) bool {
	if p == "" {
		return false
	}
	for _, seg := range p.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Unsubscribe removes a subscription.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	b.mu.RLock()
	_, ok := b.subs[sub.ID()]
	b.mu.RUnlock()
	if !ok {
		return ErrSubscriptionNotFound
	}

	sub.Cancel()
	return nil
}

// remove is the cancellation path shared by Unsubscribe and Cancel.
func (b *bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// match returns the sync and async handler lists for an event's topic,
// each in priority order.
func (b *bus) match(t topic.Topic) (syncH, asyncH []HandlerFunc) {
	b.mu.RLock()
	matched := make([]*subscription, 0, 4)
	for _, sub := range b.subs {
		if t.Matches(sub.pattern) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority < matched[j].priority
		}
		return matched[i].id < matched[j].id
	})

	for _, sub := range matched {
		if sub.mode == DeliverySync {
			syncH = append(syncH, sub.handler)
		} else {
			asyncH = append(asyncH, sub.handler)
		}
	}
	return syncH, asyncH
}

// Publish is an alias for PublishAsync.
func (b *bus) Publish(ctx context.Context, event any) error {
	return b.PublishAsync(ctx, event)
}

// PublishSync delivers to every matching subscription in the caller's
// goroutine, regardless of the subscription's delivery mode. The first
// handler error is returned after all handlers have run.
func (b *bus) PublishSync(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	env := ToEnvelope(event)
	if env.Topic == "" {
		return ErrInvalidTopic
	}

	syncH, asyncH := b.match(env.Topic)

	var firstErr error
	for _, h := range append(syncH, asyncH...) {
		if err := safeInvoke(ctx, h, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishAsync delivers sync subscriptions inline and queues async
// subscriptions to the worker.
func (b *bus) PublishAsync(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	env := ToEnvelope(event)
	if env.Topic == "" {
		return ErrInvalidTopic
	}

	syncH, asyncH := b.match(env.Topic)

	var firstErr error
	for _, h := range syncH {
		if err := safeInvoke(ctx, h, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(asyncH) > 0 {
		select {
		case b.queue <- queued{ctx: context.WithoutCancel(ctx), event: event, handlers: asyncH}:
		default:
			return ErrQueueFull
		}
	}
	return firstErr
}
