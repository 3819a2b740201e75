package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler collects wall clock time per named stage of a render and a few
// counters. Repeated scopes with the same name accumulate.
type Profiler struct {
	mu         sync.Mutex
	Scopes     map[string]time.Duration
	Calls      map[string]int
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		Calls:      make(map[string]int),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartTimes[name] = time.Now()
	if _, seen := p.Calls[name]; !seen {
		p.Order = append(p.Order, name)
		p.Calls[name] = 0
	}
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] += time.Since(start)
		p.Calls[name]++
		delete(p.StartTimes, name)
	}
}

// Scope starts name and returns the func that ends it, for use with defer.
func (p *Profiler) Scope(name string) func() {
	p.BeginScope(name)
	return func() { p.EndScope(name) }
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Counts[name] = count
}

func (p *Profiler) Elapsed(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Scopes[name]
}

// Reset zeroes the timings and keeps the display order.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
	for k := range p.Calls {
		p.Calls[k] = 0
	}
}

func (p *Profiler) GetStatsString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		if n := p.Calls[name]; n > 1 {
			sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms (%d calls)\n", name, ms, n))
		} else {
			sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms))
		}
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}

	return sb.String()
}
