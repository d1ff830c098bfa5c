package lifecycle

import (
	"sync/atomic"
	"time"
)

// Process tracks whether serve is draining and how long it has been up.
// The health handler reads it; the signal handler in main flips it.
type Process struct {
	started      time.Time
	now          func() time.Time
	shuttingDown atomic.Bool
}

func NewProcess() *Process {
	return newProcessWithClock(time.Now)
}

func newProcessWithClock(now func() time.Time) *Process {
	return &Process{started: now(), now: now}
}

// BeginShutdown marks the process as draining. Health reports shutting-down from then on.
func (p *Process) BeginShutdown() {
	p.shuttingDown.Store(true)
}

func (p *Process) IsShuttingDown() bool {
	return p.shuttingDown.Load()
}

// Uptime is the time since NewProcess, truncated to seconds.
func (p *Process) Uptime() time.Duration {
	return p.now().Sub(p.started).Truncate(time.Second)
}
