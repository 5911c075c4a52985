package collab

import (
	"sync"

	"github.com/google/uuid"
)

// Clock is a Lamport logical clock. It orders operations across replicas
// without synchronized physical time: local events tick the counter, and
// observing a remote timestamp advances the counter past it.
type Clock struct {
	mu      sync.Mutex
	counter int64
	nodeID  string
}

// NewClock creates a clock with a random node ID.
func NewClock() *Clock {
	return &Clock{nodeID: uuid.New().String()}
}

// NewClockWithNodeID creates a clock with a fixed node ID, used in tests and
// when restoring persisted state.
func NewClockWithNodeID(nodeID string) *Clock {
	return &Clock{nodeID: nodeID}
}

// Tick increments the counter for a local event and returns the new value.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Witness advances the counter past a remote timestamp:
// counter = max(counter, remote) + 1.
func (c *Clock) Witness(remote int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.counter {
		c.counter = remote
	}
	c.counter++
	return c.counter
}

// Now returns the current counter without advancing it.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// NodeID returns the clock's node identifier.
func (c *Clock) NodeID() string {
	return c.nodeID
}
