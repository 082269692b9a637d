package broker

import "sync"

type subscription[T any] struct {
	channel chan T
}

// Hub fans out published values to every current subscriber.
//
// Each subscriber has room for one value. A subscriber that has not consumed the previous value gets it replaced by
// the newer one, so a slow consumer only ever sees the latest state and never blocks the publisher. This suits
// snapshot streams such as the live leaderboard, where intermediate values are worthless once a newer one exists.
type Hub[T any] struct {
	stopChannel        chan struct{}
	publishChannel     chan T
	subscribeChannel   chan subscription[T]
	unsubscribeChannel chan chan T
	stopOnce           sync.Once
}

// NewHub creates a new Hub. Call Start in a goroutine and Stop when done.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		stopChannel:        make(chan struct{}),
		publishChannel:     make(chan T),
		subscribeChannel:   make(chan subscription[T]),
		unsubscribeChannel: make(chan chan T),
		stopOnce:           sync.Once{},
	}
}

// Start handles publish, subscribe, and unsubscribe events until Stop is called. All subscriber channels are closed
// on stop.
func (h *Hub[T]) Start() {
	subscribers := map[chan T]struct{}{}
	for {
		select {
		case <-h.stopChannel:
			for c := range subscribers {
				close(c)
			}
			return

		case s := <-h.subscribeChannel:
			subscribers[s.channel] = struct{}{}

		case c := <-h.unsubscribeChannel:
			if _, ok := subscribers[c]; ok {
				delete(subscribers, c)
				close(c)
			}

		case v := <-h.publishChannel:
			for c := range subscribers {
				replace(c, v)
			}
		}
	}
}

// replace sends v to c, discarding a value the subscriber has not consumed yet. Only the hub goroutine sends on c.
func replace[T any](c chan T, v T) {
	select {
	case c <- v:
		return
	default:
	}
	select {
	case <-c:
	default:
	}
	c <- v
}

// Stop the goroutine that handles the hub. Calling Stop more than once is safe.
func (h *Hub[T]) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChannel)
	})
}

// Subscribe returns a channel receiving published values and a function that ends the subscription and closes the
// channel. The channel is closed right away when the hub is already stopped.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	c := make(chan T, 1)
	select {
	case h.subscribeChannel <- subscription[T]{channel: c}:
	case <-h.stopChannel:
		close(c)
		return c, func() {}
	}
	unsubscribe := func() {
		select {
		case h.unsubscribeChannel <- c:
		case <-h.stopChannel:
		}
	}
	return c, unsubscribe
}

// Publish v to all subscribers. It does not wait for subscribers to consume it.
func (h *Hub[T]) Publish(v T) {
	select {
	case h.publishChannel <- v:
	case <-h.stopChannel:
	}
}
