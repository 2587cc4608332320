package counter

import "sync"

// Fraction returns the completed fraction of a job spanning [end,start]
// after processing message m. The very first message already reports
// one message worth of progress instead of zero.
func Fraction(start, end, m int) float64 {
	total := start - end
	if total <= 0 {
		return 1
	}

	unit := 1.0 / float64(total)
	processed := start - m
	if processed == 0 {
		return unit
	}
	return clamp01(float64(processed) * unit)
}

// Progress folds the fractional completion of concurrently running
// jobs into one overall value. Per-session values only ever grow
// within one job; the tracker is reset for every dispatched target
// and the overall value is pinned to 1.0 when the run ends, however
// it ended.
type Progress struct {
	mu       sync.Mutex
	sessions map[string]float64
	finished bool
}

// NewProgress creates a reset progress tracker.
func NewProgress() *Progress {
	return &Progress{sessions: make(map[string]float64)}
}

// Reset clears all per-session values for a new run.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]float64)
	p.finished = false
}

// SetSession records a session's completion fraction. Values are
// clamped to [0,1] and never move backwards.
func (p *Progress) SetSession(session string, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fraction = clamp01(fraction)
	if fraction > p.sessions[session] {
		p.sessions[session] = fraction
	}
}

// Finish pins the overall value to 1.0.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
}

// Session returns one session's current fraction.
func (p *Progress) Session(session string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[session]
}

// Overall returns the arithmetic mean of all active sessions'
// fractions, or 1.0 after Finish.
func (p *Progress) Overall() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return 1.0
	}
	if len(p.sessions) == 0 {
		return 0
	}

	var sum float64
	for _, f := range p.sessions {
		sum += f
	}
	return sum / float64(len(p.sessions))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
