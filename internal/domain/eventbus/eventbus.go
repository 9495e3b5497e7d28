// Package eventbus is a thin wrapper over the process-wide event bus.
// It decouples request handlers from background reactions such as
// cache eviction after a synthesis completes.
package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// TopicSynthesisCompleted fires after a synthesis request has produced
// its merged output. Subscribers receive no arguments.
const TopicSynthesisCompleted = "synthesis.completed"

var (
	instance evbus.Bus
	once     sync.Once
)

// Get returns the process-wide bus.
func Get() evbus.Bus {
	once.Do(func() {
		instance = evbus.New()
	})
	return instance
}

// Publish emits an event on the process-wide bus.
func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

// SubscribeAsync registers fn to run on its own goroutine per event.
func SubscribeAsync(topic string, fn interface{}) error {
	return Get().SubscribeAsync(topic, fn, false)
}

// Unsubscribe removes a previously registered handler.
func Unsubscribe(topic string, fn interface{}) error {
	return Get().Unsubscribe(topic, fn)
}
