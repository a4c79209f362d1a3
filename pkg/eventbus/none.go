package eventbus

import (
	"context"
	"fmt"
)

// None is a Bus with no cross-instance delivery: Publish succeeds and
// does nothing, Subscribe registers a handler that is never invoked. It
// is the correct choice for a single-instance deployment where the write
// path's direct snapshot mutation is the only propagation mechanism
// needed.
type None struct{}

// NewNone returns the no-op Bus.
func NewNone() *None {
	return &None{}
}

func (*None) Publish(ctx context.Context, e Event) error {
	return nil
}

func (*None) Subscribe(ctx context.Context, h Handler) error {
	return nil
}

func (*None) Close() error {
	return nil
}

func errUnknownConfig(cfg Config) error {
	return fmt.Errorf("eventbus: unknown config type %T", cfg)
}
