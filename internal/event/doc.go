// Package event is the in-process publish/subscribe bus connecting the
// editor's components: the application publishes buffer, config,
// dispatcher, LSP, and renderer-contract events; any component (or an
// embedding host) subscribes by topic pattern.
//
// Events are typed at the publisher and type-erased on the wire:
//
//	ev := event.NewEvent(events.TopicBufferContentInserted, payload, "app")
//	_ = bus.Publish(ctx, ev)
//
//	sub, _ := bus.SubscribeFunc("buffer.content.*", func(ctx context.Context, ev any) error {
//	    if e, ok := ev.(event.Event[events.BufferContentInserted]); ok {
//	        _ = e.Payload
//	    }
//	    return nil
//	}, event.WithDeliveryMode(event.DeliveryAsync))
//	defer bus.Unsubscribe(sub)
//
// Topic patterns support "*" (one segment) and "**" (any segments); see
// the topic subpackage. Sync subscriptions run in the publisher's
// goroutine in priority order; async subscriptions run on the bus
// worker, preserving publish order. Handler panics are contained and
// surface as ErrHandlerPanic, never as a crash.
package event
