package hook

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Challenges issues the shared secrets external hook processes present when
// calling back into this server. Values only live in process memory, so a
// restart invalidates every outstanding challenge.
type Challenges struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	issued map[string]time.Time
}

// NewChallenges creates a set whose values expire after ttl. A ttl of zero
// never expires values.
func NewChallenges(ttl time.Duration) *Challenges {
	return &Challenges{ttl: ttl, now: time.Now, issued: make(map[string]time.Time)}
}

// Issue creates and remembers a new challenge.
func (c *Challenges) Issue() string {
	value := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	c.issued[value] = c.now()
	return value
}

// Accept reports whether value is currently issued and unexpired.
func (c *Challenges) Accept(value string) bool {
	if value == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.issued[value]
	if !ok {
		return false
	}
	if c.expired(at) {
		delete(c.issued, value)
		return false
	}
	return true
}

// Revoke forgets value.
func (c *Challenges) Revoke(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.issued, value)
}

// Len returns the number of outstanding challenges.
func (c *Challenges) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issued)
}

func (c *Challenges) expired(at time.Time) bool {
	return c.ttl > 0 && c.now().Sub(at) > c.ttl
}

func (c *Challenges) sweep() {
	for v, at := range c.issued {
		if c.expired(at) {
			delete(c.issued, v)
		}
	}
}
