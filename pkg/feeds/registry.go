package feeds

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]FeedFactory)
	mu       sync.RWMutex
)

// Register adds a feed factory to the registry under "type.name".
func Register(name string, factory FeedFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Create creates a new feed instance by type and name.
func Create(feedType, name string, config map[string]interface{}) (Feed, error) {
	mu.RLock()
	defer mu.RUnlock()

	key := fmt.Sprintf("%s.%s", feedType, name)
	factory, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, key)
	}

	return factory(config)
}

// List returns all registered feed keys, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
