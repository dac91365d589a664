package module

import (
	"slices"
	"sync"
)

var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register records the ports a composed module exposes, the meta routes list them
func Register(name string, ports any) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = ports
}

// Names lists registered modules sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(reg))
	for n := range reg {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Reset empties the registry between tests
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	reg = map[string]any{}
}
