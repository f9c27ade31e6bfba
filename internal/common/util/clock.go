package util

import "time"

type Clock interface {
	Now() time.Time
}

type DefaultClock struct{}

func (c *DefaultClock) Now() time.Time { return time.Now() }

// DummyClock is a Clock frozen at T, for tests.
type DummyClock struct {
	T time.Time
}

func (c *DummyClock) Now() time.Time {
	return c.T
}
