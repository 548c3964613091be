package session

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
)

// DefaultPumpInterval is the polling interval between frame reads
const DefaultPumpInterval = 10 * time.Millisecond

// Pump calls tick at a fixed interval on a single goroutine. A tick always
// finishes before the next one starts; late ticks are dropped, not queued.
// When tick fails the pump stops and reports the error.
type Pump struct {
	interval time.Duration
	tick     func() error
	onError  func(error)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	ticks    int64
}

// NewPump creates a stopped pump
func NewPump(interval time.Duration, tick func() error, onError func(error)) *Pump {
	if interval <= 0 {
		interval = DefaultPumpInterval
	}
	return &Pump{
		interval: interval,
		tick:     tick,
		onError:  onError,
	}
}

// Start begins ticking; it does nothing when already running
func (p *Pump) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	go p.loop(p.stopChan, p.done)

	logger.WithComponent("pump").Debug().
		Dur("interval", p.interval).
		Msg("Pump started")
}

// Stop halts the pump and waits for an in-flight tick to finish. It must not
// be called from inside tick or onError.
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		done := p.done
		p.mu.Unlock()
		// the loop may still be exiting after a failed tick
		if done != nil {
			<-done
		}
		return
	}
	p.running = false
	close(p.stopChan)
	done := p.done
	p.mu.Unlock()

	<-done
	logger.WithComponent("pump").Debug().Msg("Pump stopped")
}

// Running reports whether the pump is scheduled to tick
func (p *Pump) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Ticks returns the number of completed ticks
func (p *Pump) Ticks() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

func (p *Pump) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// a Stop that raced with the ticker wins
		select {
		case <-stop:
			return
		default:
		}

		err := p.tick()

		p.mu.Lock()
		p.ticks++
		if err != nil {
			p.running = false
		}
		p.mu.Unlock()

		if err != nil {
			logger.WithComponent("pump").Warn().Err(err).Msg("Tick failed, pump stopped")
			if p.onError != nil {
				p.onError(err)
			}
			return
		}
	}
}
