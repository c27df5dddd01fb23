package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-order-engine/internal/domain/order"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu         sync.Mutex
	Published  []PublishCall
	PublishErr error
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishCall{Key: key, Event: event})
	return m.PublishErr
}

// EventTypes returns the type of every published order envelope, in order.
func (m *MockPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Published {
		if env, ok := c.Event.(order.Envelope); ok {
			out = append(out, env.EventType)
		}
	}
	return out
}
