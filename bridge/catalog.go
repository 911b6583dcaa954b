package bridge

import (
	"slices"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fxsml/reactive/broker"
)

// Topic is a broker topic carrying CloudEvents.
type Topic = broker.Topic[cloudevents.Event]

// Catalog maps topic names to shared Topic identities, so in-process
// collaborators and HTTP clients address the same stream by name.
type Catalog struct {
	mu         sync.RWMutex
	topics     map[string]*Topic
	autoCreate int
}

// NewCatalog creates an empty catalog. When autoCreateCapacity is
// positive, Ensure creates unknown names with that retention.
func NewCatalog(autoCreateCapacity int) *Catalog {
	return &Catalog{
		topics:     make(map[string]*Topic),
		autoCreate: autoCreateCapacity,
	}
}

// Register returns the topic named name, creating it with the given
// retention capacity. A name that is already registered keeps its topic
// and capacity.
func (c *Catalog) Register(name string, capacity int) *Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.topics[name]; ok {
		return t
	}
	t := broker.NewTopic[cloudevents.Event](name, capacity)
	c.topics[name] = t
	return t
}

// Lookup returns the registered topic named name. It never creates one.
func (c *Catalog) Lookup(name string) (*Topic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.topics[name]
	return t, ok
}

// Ensure is Lookup that creates unknown names when auto-creation is
// enabled. Only publishing should call it, so that reads of unknown names
// cannot grow the catalog.
func (c *Catalog) Ensure(name string) (*Topic, bool) {
	if t, ok := c.Lookup(name); ok || c.autoCreate <= 0 {
		return t, ok
	}
	return c.Register(name, c.autoCreate), true
}

// Names returns the registered topic names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.topics))
	for name := range c.topics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
