package testutil

import (
	"sync"
	"time"
)

// Clock - управляемые часы для тестов с логикой, зависящей от времени.
// Метод Now совместим с полями вида `now func() time.Time`.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock создаёт часы, остановленные на t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now возвращает текущее значение часов.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы на d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set выставляет часы в t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
