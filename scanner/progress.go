package scanner

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker shows ingest progress on the terminal while a scan runs.
type ProgressTracker struct {
	totalFiles int
	processed  int
	errors     int
	duplicates int
	ticker     *time.Ticker
	done       chan bool
	mu         sync.Mutex
}

// NewProgressTracker initializes the progress tracker
func NewProgressTracker(totalFiles int) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan bool),
		totalFiles: totalFiles,
	}

	go tracker.displayProgress()

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rProgress: %d/%d (Duplicates: %d, Errors: %d)",
					p.processed, p.totalFiles, p.duplicates, p.errors)
			} else {
				fmt.Printf("\rProgress: %d/%d (Duplicates: %d)",
					p.processed, p.totalFiles, p.duplicates)
			}
			p.mu.Unlock()
		}
	}
}

// Record updates the tracker after one file finished processing.
func (p *ProgressTracker) Record(success, duplicate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	if !success {
		p.errors++
	}
	if duplicate {
		p.duplicates++
	}
}

// Stop ends the progress tracking, leaving a final terminated progress line.
func (p *ProgressTracker) Stop() {
	p.ticker.Stop()
	p.done <- true

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errors > 0 {
		fmt.Printf("\rProgress: %d/%d (Duplicates: %d, Errors: %d)\n",
			p.processed, p.totalFiles, p.duplicates, p.errors)
	} else {
		fmt.Printf("\rProgress: %d/%d (Duplicates: %d)\n",
			p.processed, p.totalFiles, p.duplicates)
	}
}
