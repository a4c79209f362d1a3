package eventbus

import "context"

// Handler processes one Event delivered by a Bus subscription. Handlers
// must be idempotent: a bus may redeliver an event after a transient
// failure.
type Handler func(ctx context.Context, e Event) error

// Bus publishes write-path events and delivers them to every subscribed
// handler, including ones registered on other Cedrus instances.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// Config is the sealed configuration for selecting a Bus implementation.
// The concrete variants are None (in-process, no cross-instance delivery)
// and Distributed (an external broker, wired by the embedding
// application).
type Config interface {
	isEventBusConfig()
}

// NoneConfig selects the in-core no-op Bus: Publish is a no-op and no
// events are ever delivered to Subscribe handlers. Correct only for a
// single-instance deployment, since the registry then depends solely on
// the write path's own direct snapshot mutation.
type NoneConfig struct{}

func (NoneConfig) isEventBusConfig() {}

// DistributedConfig selects an externally supplied Bus backed by a
// message broker shared across instances. Cedrus core has no concrete
// broker client of its own; the embedding application constructs the Bus
// and passes it in.
type DistributedConfig struct {
	Bus Bus
}

func (DistributedConfig) isEventBusConfig() {}

// New builds the Bus named by cfg.
func New(cfg Config) (Bus, error) {
	switch c := cfg.(type) {
	case NoneConfig:
		return NewNone(), nil
	case DistributedConfig:
		return c.Bus, nil
	default:
		return nil, errUnknownConfig(cfg)
	}
}
