package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"imagedupe/dedup"
	"imagedupe/imageio"
	"imagedupe/logging"
	"imagedupe/scanner"
	"imagedupe/signalhandler"
	"imagedupe/store"
	"imagedupe/utils"
)

// lister is the read-only view both backends offer for the list command.
type lister interface {
	IDs() []string
	Get(id string) (*store.Record, bool)
	Len() int
}

func main() {
	// Set up proper signal handling
	signalhandler.SetupHandler()

	// Parse command line arguments into a map
	args := utils.ParseArguments()
	command, hasCommand := args["command"]

	// Set default database path
	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		// Allow --db as an alias for --database
		dbPath = customDB
	} else if args["backend"] == "sqlite" {
		dbPath = strings.TrimSuffix(dbPath, ".json") + ".db"
	}

	// Setup debug logging if enabled
	if _, ok := args["debug"]; ok {
		logPath := "imagedupe.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
			defer logging.CloseLogger()
		}
	}

	// Check if required arguments are missing
	showUsage := !hasCommand
	if hasCommand {
		switch command {
		case "ingest", "query":
			if args["image"] == "" {
				showUsage = true
			}
		case "scan":
			if args["folder"] == "" {
				showUsage = true
			}
		case "export":
			if args["image"] == "" || args["output"] == "" {
				showUsage = true
			}
		}
	}

	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	// Parse the similarity threshold
	threshold := float64(dedup.DefaultThreshold)
	if thresholdStr, ok := args["threshold"]; ok {
		parsed, err := utils.ParseThreshold(thresholdStr)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			threshold = parsed
		}
	}

	// Export never touches the database, so handle it before opening one.
	if command == "export" {
		handleExport(args)
		return
	}

	registry, closeRegistry, err := openRegistry(args["backend"], dbPath)
	if err != nil {
		fmt.Printf("Error opening fingerprint database: %v\n", err)
		os.Exit(1)
	}
	defer closeRegistry()

	switch command {
	case "ingest":
		handleIngest(registry, args["image"], threshold)
	case "query":
		handleQuery(registry, args["image"], threshold)
	case "scan":
		handleScan(registry, args, threshold)
	case "list":
		handleList(registry, dbPath)
	case "clear":
		handleClear(registry, args)
	case "info":
		handleInfo(registry, dbPath)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

// openRegistry opens the chosen storage backend. The returned close function
// is a no-op for the document store.
func openRegistry(backend, dbPath string) (store.Registry, func(), error) {
	switch backend {
	case "", "json":
		s := store.New(dbPath)
		s.Load()
		return s, func() {}, nil
	case "sqlite":
		s, err := store.OpenSQLite(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want json or sqlite)", backend)
	}
}

func handleIngest(registry store.Registry, imagePath string, threshold float64) {
	buf, src, err := imageio.DecodeFile(imagePath)
	if err != nil {
		fmt.Printf("Error loading image: %v\n", err)
		os.Exit(1)
	}

	finder := dedup.NewFinder(registry, dedup.WithThreshold(threshold))
	result, err := finder.Ingest(buf, src)
	if err != nil {
		fmt.Printf("Error ingesting image: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Ingested: %s\n", src.Filename)
	fmt.Printf("  Size: %dx%d\n", buf.Width, buf.Height)
	fmt.Printf("  Record ID: %s\n", result.RecordID)
	fmt.Printf("  Fingerprint: %s\n", result.Fingerprint)
	if !result.Persisted {
		fmt.Println("  Warning: observation recorded in memory only, persisting failed")
	}

	printMatches(result.Matches)
}

func handleExport(args map[string]string) {
	buf, src, err := imageio.DecodeFile(args["image"])
	if err != nil {
		fmt.Printf("Error loading image: %v\n", err)
		os.Exit(1)
	}

	quality := imageio.DefaultJPEGQuality
	if qualityStr, ok := args["quality"]; ok {
		if parsed, err := strconv.Atoi(qualityStr); err == nil && parsed > 0 && parsed <= 100 {
			quality = parsed
		} else {
			fmt.Printf("Warning: invalid quality value '%s', using default (%d)\n", qualityStr, imageio.DefaultJPEGQuality)
		}
	}

	outputPath := args["output"]
	if err := imageio.EncodeFile(buf, outputPath, quality); err != nil {
		fmt.Printf("Error exporting image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %s to %s\n", src.Filename, outputPath)
}

func handleQuery(registry store.Registry, imagePath string, threshold float64) {
	buf, _, err := imageio.DecodeFile(imagePath)
	if err != nil {
		fmt.Printf("Error loading image: %v\n", err)
		os.Exit(1)
	}

	finder := dedup.NewFinder(registry)
	fp, matches, err := finder.Query(buf, threshold)
	if err != nil {
		fmt.Printf("Error querying image: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Fingerprint: %s\n", fp)
	if len(matches) == 0 {
		fmt.Println("No similar images on record.")
		return
	}
	printMatches(matches)
}

func handleScan(registry store.Registry, args map[string]string, threshold float64) {
	folderPath := args["folder"]
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		fmt.Printf("Cannot access folder path: %s (%v)\n", folderPath, err)
		os.Exit(1)
	}
	if !folderInfo.IsDir() {
		fmt.Printf("Path is not a directory: %s\n", folderPath)
		os.Exit(1)
	}

	workers := 0
	if workersStr, ok := args["workers"]; ok {
		if parsed, err := strconv.Atoi(workersStr); err == nil && parsed > 0 {
			workers = parsed
		}
	}

	_, debugMode := args["debug"]
	finder := dedup.NewFinder(registry,
		dedup.WithThreshold(threshold),
		dedup.WithCache(dedup.NewSessionCache(0)),
	)

	summary, err := scanner.ScanFolder(finder, scanner.ScanOptions{
		FolderPath: folderPath,
		MaxWorkers: workers,
		DebugMode:  debugMode,
	})
	if err != nil {
		fmt.Printf("\nError scanning folder: %v\n", err)
		os.Exit(1)
	}

	scanner.PrintSummary(summary)
}

func handleList(registry store.Registry, dbPath string) {
	records, ok := registry.(lister)
	if !ok {
		fmt.Println("This backend does not support listing.")
		os.Exit(1)
	}

	if records.Len() == 0 {
		fmt.Println("The fingerprint database is empty.")
		return
	}

	fmt.Printf("Fingerprint database: %d distinct images (%s)\n", records.Len(), dbPath)
	for i, id := range records.IDs() {
		record, ok := records.Get(id)
		if !ok {
			continue
		}
		fmt.Printf("\n%d. Record ID: %s\n", i+1, id)
		fmt.Printf("   Original filename: %s\n", record.OriginalFilename)
		fmt.Printf("   First seen: %s\n", record.FirstSeen.Format("2006-01-02 15:04:05"))
		fmt.Printf("   Observations: %d\n", record.Count)

		// Show at most the three most recent locations
		locations := record.Locations
		if len(locations) > 3 {
			locations = locations[len(locations)-3:]
		}
		for _, loc := range locations {
			fmt.Printf("     - %s (%s)\n", loc.Path, loc.Timestamp.Format("2006-01-02"))
		}
	}
}

func handleClear(registry store.Registry, args map[string]string) {
	if _, confirmed := args["yes"]; !confirmed {
		fmt.Println("Refusing to clear the fingerprint database without --yes.")
		os.Exit(1)
	}

	if registry.Clear() {
		fmt.Println("Fingerprint database cleared.")
	} else {
		fmt.Println("Error: could not persist the cleared database.")
		os.Exit(1)
	}
}

func handleInfo(registry store.Registry, dbPath string) {
	fmt.Printf("Database path: %s\n", dbPath)
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("Database size: %d bytes\n", info.Size())
		fmt.Printf("Last modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Database file does not exist yet (created on first ingest).")
	}
	fmt.Printf("Records: %d\n", registry.Len())
}

func printMatches(matches []store.Match) {
	if len(matches) == 0 {
		return
	}

	fmt.Println("\nSimilar images on record:")
	limit := 3
	for i, match := range matches {
		if i >= limit {
			break
		}
		fmt.Printf("  %d. Similarity: %.1f%%\n", i+1, match.Similarity)
		fmt.Printf("     Original file: %s\n", match.Record.OriginalFilename)
		fmt.Printf("     First seen: %s\n", match.Record.FirstSeen.Format("2006-01-02 15:04:05"))
		if match.Similarity > dedup.NearCertain {
			fmt.Println("     This is almost certainly the same image!")
		}
	}
}
