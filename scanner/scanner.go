// Package scanner walks a folder tree and ingests every decodable image
// into a duplicate finder.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"imagedupe/dedup"
	"imagedupe/fingerprint"
	"imagedupe/imageio"
	"imagedupe/logging"
	"imagedupe/signalhandler"
	"imagedupe/types"
)

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath string
	MaxWorkers int
	DebugMode  bool
}

// Summary reports the outcome of one folder scan.
type Summary struct {
	TotalFiles int
	Processed  int
	Errors     int
	Duplicates int
	NewRecords int
	Elapsed    time.Duration
}

// fileResult carries one decoded and fingerprinted file from the worker
// pool to the collector.
type fileResult struct {
	src types.SourceInfo
	fp  *fingerprint.Fingerprint
	err error
}

// ScanFolder walks the folder, fingerprints images in a bounded worker pool
// and funnels every ingest through a single collector so the registry is
// only ever mutated from one goroutine.
func ScanFolder(finder *dedup.Finder, options ScanOptions) (*Summary, error) {
	startTime := time.Now()

	workers := options.MaxWorkers
	if workers < 1 {
		workers = signalhandler.GetOptimalProcs()
	}

	totalFiles := countImageFiles(options.FolderPath)
	if options.DebugMode {
		logging.DebugLog("starting scan of %s: %d image files, %d workers", options.FolderPath, totalFiles, workers)
	}

	tracker := NewProgressTracker(totalFiles)
	defer tracker.Stop()

	paths := make(chan string, workers)
	results := make(chan fileResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				buf, src, err := imageio.DecodeFile(path)
				if err != nil {
					results <- fileResult{src: src, err: err}
					continue
				}
				fp, err := finder.Fingerprint(buf)
				results <- fileResult{src: src, fp: fp, err: err}
			}
		}()
	}

	walkDone := make(chan error, 1)
	go func() {
		defer close(paths)
		walkDone <- filepath.Walk(options.FolderPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				logging.LogError("cannot access %s: %v", path, err)
				return nil
			}
			if info.IsDir() || !imageio.IsImageFile(filepath.Ext(path)) {
				return nil
			}
			paths <- path
			return nil
		})
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &Summary{TotalFiles: totalFiles}

	for result := range results {
		if result.err != nil {
			summary.Errors++
			tracker.Record(false, false)
			logging.LogImageProcessed(result.src.Path, false, result.err.Error())
			continue
		}

		ingest, err := finder.IngestFingerprint(result.fp, result.src)
		if err != nil {
			summary.Errors++
			tracker.Record(false, false)
			logging.LogImageProcessed(result.src.Path, false, err.Error())
			continue
		}

		summary.Processed++
		duplicate := len(ingest.Matches) > 0
		if duplicate {
			summary.Duplicates++
		} else {
			summary.NewRecords++
		}
		tracker.Record(true, duplicate)
		logging.LogImageProcessed(result.src.Path, true, "")
	}

	summary.Elapsed = time.Since(startTime)
	return summary, <-walkDone
}

// PrintSummary displays statistics after scan completion.
func PrintSummary(summary *Summary) {
	fmt.Println("\nScan complete.")
	fmt.Printf("Processed %d/%d images in %v.\n",
		summary.Processed, summary.TotalFiles, summary.Elapsed.Round(time.Second))
	fmt.Printf("New records: %d, duplicate observations: %d\n",
		summary.NewRecords, summary.Duplicates)

	if summary.Errors > 0 {
		fmt.Printf("Encountered %d errors during the scan.\n", summary.Errors)
		fmt.Println("Check the log file for details.")
	}
}

// countImageFiles counts decodable files under the folder for progress
// tracking.
func countImageFiles(folderPath string) int {
	total := 0
	filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if imageio.IsImageFile(filepath.Ext(path)) {
			total++
		}
		return nil
	})
	return total
}
