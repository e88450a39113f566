package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ScanProgress renders a countdown line while a scan window runs and clears
// it once the scanner reports a stop phase.
//
// Usage:
//
//	p := NewScanProgress(w, "Scanning for BLE devices", window, scanner.PhaseProcessing)
//	p.Start()
//	defer p.Stop()
//
// A ScanProgress is single-use.
type ScanProgress struct {
	out        io.Writer
	prefix     string
	duration   time.Duration
	phase      atomic.Value // string
	stopPhases map[string]struct{}

	startTime time.Time
	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// NewScanProgress creates a countdown printer over duration.
// stopPhases are phase names that stop the printer when set via Callback.
func NewScanProgress(out io.Writer, prefix string, duration time.Duration, stopPhases ...string) *ScanProgress {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ScanProgress{
		out:        out,
		prefix:     prefix,
		duration:   duration,
		stopPhases: stopSet,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.phase.Store("")
	return p
}

// Start begins displaying progress updates in a background goroutine
func (p *ScanProgress) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.startTime = time.Now()
	fmt.Fprintf(p.out, "\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				phase := p.phase.Load().(string)
				if phase == "" {
					continue
				}
				fmt.Fprintf(p.out, "\r%s (%s %ds)   ", p.prefix, phase, p.remaining())
			}
		}
	}()
}

// remaining rounds the time left to the nearest second, never below zero
func (p *ScanProgress) remaining() int {
	left := p.duration - time.Since(p.startTime)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds() + 0.5)
}

// Callback returns a phase callback for scanner.NewScanner.
// It is safe to call from multiple goroutines.
func (p *ScanProgress) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop ends the display and clears the line. Only the first call has any effect.
func (p *ScanProgress) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.started.Load() {
			<-p.done
			fmt.Fprint(p.out, clearLineSequence)
		}
	})
}
