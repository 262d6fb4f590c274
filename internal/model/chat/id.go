package chat

import (
	"sync"
	"time"
)

// IDClock hands out message ids derived from the wall clock in milliseconds.
// Ids are strictly increasing even when several are requested within the
// same millisecond.
type IDClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDClock returns a clock backed by time.Now.
func NewIDClock() *IDClock {
	return &IDClock{now: time.Now}
}

// Next returns the next message id.
func (c *IDClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}
