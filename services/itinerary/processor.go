// File: services/itinerary/processor.go
package itinerary

import (
	"sync"
	"time"

	"tripsync/models"
)

// Processor guards the normalizer against being invoked for every update in a
// rapid burst of prop/message changes. Only the last payload submitted within
// the debounce window is normalized; each new submission cancels the previous
// timer.
type Processor struct {
	normalizer *Normalizer
	delay      time.Duration
	onResult   func(*models.CanonicalItinerary)

	mu      sync.Mutex
	timer   *time.Timer
	pending any
	stopped bool
	wg      sync.WaitGroup
}

// NewProcessor wraps the normalizer with a debounce window. onResult receives
// every normalized itinerary, from the processor's timer goroutine.
func NewProcessor(normalizer *Normalizer, delay time.Duration, onResult func(*models.CanonicalItinerary)) *Processor {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Processor{
		normalizer: normalizer,
		delay:      delay,
		onResult:   onResult,
	}
}

// Submit queues a payload for normalization after the quiet period. A payload
// submitted while a previous one is still waiting replaces it.
func (p *Processor) Submit(input any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	if p.timer != nil && p.timer.Stop() {
		// The superseded payload never fires.
		p.wg.Done()
	}
	p.pending = input
	p.wg.Add(1)
	p.timer = time.AfterFunc(p.delay, p.fire)
}

// Flush normalizes the pending payload immediately, if any. Used on teardown
// so a trailing update is not lost. Only the payload pending at call time is
// processed; a submission racing in keeps its own debounce window.
func (p *Processor) Flush() {
	p.mu.Lock()
	if p.timer == nil || !p.timer.Stop() {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	input := p.pending
	p.pending = nil
	stopped := p.stopped
	p.mu.Unlock()

	p.process(input, stopped)
}

// Stop cancels any pending work. The processor accepts no submissions
// afterwards.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	if p.timer != nil && p.timer.Stop() {
		p.pending = nil
		p.wg.Done()
	}
	p.timer = nil
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Processor) fire() {
	p.mu.Lock()
	input := p.pending
	p.pending = nil
	p.timer = nil
	stopped := p.stopped
	p.mu.Unlock()

	p.process(input, stopped)
}

func (p *Processor) process(input any, stopped bool) {
	defer p.wg.Done()
	if stopped || input == nil {
		return
	}

	result := p.normalizer.Normalize(input)
	if p.onResult != nil {
		p.onResult(result)
	}
}
