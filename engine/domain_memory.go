package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engine    string
	expiresAt time.Time
}

// DomainMemory remembers, per host, which engine last produced an
// accepted page, so the next auto run for that host can skip the race.
// Entries expire after a TTL. It is safe for concurrent use.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	stopped sync.Once
}

// NewDomainMemory creates a DomainMemory and starts a goroutine that
// prunes expired entries every sweep interval. Call Stop to end it.
func NewDomainMemory(ttl, sweep time.Duration) *DomainMemory {
	m := &DomainMemory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go m.sweepLoop(sweep)
	}
	return m
}

// Get returns the remembered engine for host, or "".
func (m *DomainMemory) Get(host string) string {
	if m == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, host)
		return ""
	}
	return e.engine
}

// Set records the engine that served host.
func (m *DomainMemory) Set(host, engine string) {
	if m == nil || host == "" {
		return
	}
	m.mu.Lock()
	m.entries[host] = memoryEntry{engine: engine, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// Forget drops the entry for host.
func (m *DomainMemory) Forget(host string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.entries, host)
	m.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (m *DomainMemory) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stop terminates the sweep goroutine. It is safe to call more than once.
func (m *DomainMemory) Stop() {
	m.stopped.Do(func() { close(m.done) })
}

func (m *DomainMemory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.prune()
		}
	}
}

func (m *DomainMemory) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for host, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, host)
		}
	}
}
