package rcon

import (
	"sync"
	"time"
)

// pending is the single command awaiting its response.
type pending struct {
	command  string
	onDone   func(response string, err error)
	enqueued time.Time
	once     sync.Once
}

// resolve delivers the outcome at most once, on a fresh goroutine so
// a slow callback cannot stall the client loop.  It reports whether
// this call was the one that took effect.
func (p *pending) resolve(response string, err error) bool {
	fired := false
	p.once.Do(func() {
		fired = true
		go p.onDone(response, err)
	})
	return fired
}
