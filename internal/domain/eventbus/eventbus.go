package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Bus is a synchronous topic bus shared by the components of one client.
// Publish runs the handlers on the caller's goroutine, in subscription order,
// and returns once they have all run. Concurrent publishers are serialized.
//
// The underlying bus holds its lock while handlers run, so a handler must not
// call Publish. Handlers use PublishDeferred instead; the event is delivered
// once the dispatch in progress finishes.
type Bus struct {
	bus evbus.Bus

	mu       sync.Mutex
	deferred []pending
	// inFlight counts deliveries that have started and not yet returned.
	inFlight int
}

type pending struct {
	topic string
	args  []interface{}
}

// New 创建新的同步事件总线
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish 发布同步事件，等待所有处理器执行完毕
func (b *Bus) Publish(topic string, args ...interface{}) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.inFlight++
	b.mu.Unlock()
	b.deliver(pending{topic: topic, args: args})
}

// PublishDeferred queues an event behind the dispatch in progress. With
// nothing in flight it behaves like Publish.
func (b *Bus) PublishDeferred(topic string, args ...interface{}) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.inFlight > 0 {
		b.deferred = append(b.deferred, pending{topic: topic, args: args})
		b.mu.Unlock()
		return
	}
	b.inFlight++
	b.mu.Unlock()
	b.deliver(pending{topic: topic, args: args})
}

// deliver publishes next and then drains deferred events. The caller has
// already counted itself in inFlight.
func (b *Bus) deliver(next pending) {
	for {
		b.bus.Publish(next.topic, next.args...)

		b.mu.Lock()
		if len(b.deferred) == 0 {
			b.inFlight--
			b.mu.Unlock()
			return
		}
		next = b.deferred[0]
		b.deferred = b.deferred[1:]
		b.mu.Unlock()
	}
}

// Subscribe 订阅同步事件
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback 检查是否有订阅者
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}
