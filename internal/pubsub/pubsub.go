package pubsub

import (
	"context"
)

// Lifecycle topics published while modules are loaded.
const (
	// TopicModuleRegistered fires after every pipeline step of a module succeeded.
	TopicModuleRegistered = "modules.registered"
	// TopicModulesBooted fires once all modules are registered and providers booted.
	TopicModulesBooted = "modules.booted"
	// TopicModulesChanged fires when the watcher sees a change under the module root.
	TopicModulesChanged = "modules.changed"
)

// Metadata keys carried by lifecycle messages.
const (
	MetaModule = "module"
	MetaPath   = "path"
	MetaCount  = "count"
	MetaOp     = "op"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "modules.registered").
	Topic string
	// Payload contains the raw message data, JSON for lifecycle events.
	Payload []byte
	// Metadata carries small string attributes such as the module name.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with the handler.
	// It returns once the subscription is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Nop is a Publisher that drops every message.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Message) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
