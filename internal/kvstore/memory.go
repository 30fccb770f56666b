package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process shared medium. Tests use one Memory with several
// Clients to model independent instances racing over the same durable state;
// single-process deployments use it as the storage driver.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
	subs map[int]subscriber
	next int
}

type subscriber struct {
	origin string
	fn     func(Event)
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]string),
		subs: make(map[int]subscriber),
	}
}

// Client returns a Store handle whose writes are tagged with origin.
// Events produced by this handle are not delivered back to it.
func (m *Memory) Client(origin string) Store {
	return &memoryClient{hub: m, origin: origin}
}

type memoryClient struct {
	hub    *Memory
	origin string
}

func (c *memoryClient) Get(_ context.Context, key string) (string, bool, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	v, ok := c.hub.data[key]
	return v, ok, nil
}

func (c *memoryClient) Set(_ context.Context, key, value string) error {
	c.hub.mu.Lock()
	c.hub.data[key] = value
	targets := c.hub.targets(c.origin)
	c.hub.mu.Unlock()

	dispatch(targets, Event{Key: key, Value: value, Origin: c.origin})
	return nil
}

func (c *memoryClient) Delete(_ context.Context, key string) error {
	c.hub.mu.Lock()
	_, existed := c.hub.data[key]
	delete(c.hub.data, key)
	targets := c.hub.targets(c.origin)
	c.hub.mu.Unlock()

	if existed {
		dispatch(targets, Event{Key: key, Deleted: true, Origin: c.origin})
	}
	return nil
}

func (c *memoryClient) Subscribe(_ context.Context, fn func(Event)) (func(), error) {
	c.hub.mu.Lock()
	id := c.hub.next
	c.hub.next++
	c.hub.subs[id] = subscriber{origin: c.origin, fn: fn}
	c.hub.mu.Unlock()

	return func() {
		c.hub.mu.Lock()
		delete(c.hub.subs, id)
		c.hub.mu.Unlock()
	}, nil
}

// targets collects handlers for every instance except origin.
// Must be called with the hub lock held.
func (m *Memory) targets(origin string) []func(Event) {
	out := make([]func(Event), 0, len(m.subs))
	for _, s := range m.subs {
		if s.origin != origin {
			out = append(out, s.fn)
		}
	}
	return out
}

// dispatch runs outside the hub lock so handlers may call back into the store.
func dispatch(targets []func(Event), e Event) {
	for _, fn := range targets {
		fn(e)
	}
}
