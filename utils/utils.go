package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var commands = []string{"ingest", "query", "scan", "export", "list", "clear", "info"}

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		for _, known := range commands {
			if os.Args[i] == known {
				command = os.Args[i]
				commandIndex = i
				break
			}
		}
		if command != "" {
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// GetDefaultDatabasePath returns the default path for the fingerprint database file
func GetDefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "image_fingerprints.json"
	}

	exeDir := filepath.Dir(exePath)
	return filepath.Join(exeDir, "image_fingerprints.json")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s ingest --image=PATH [--db=PATH] [--threshold=VALUE] [--backend=json|sqlite] [--debug]\n", os.Args[0])
	fmt.Printf("  %s query --image=PATH [--db=PATH] [--threshold=VALUE] [--backend=json|sqlite]\n", os.Args[0])
	fmt.Printf("  %s scan --folder=PATH [--db=PATH] [--threshold=VALUE] [--workers=N] [--debug]\n", os.Args[0])
	fmt.Printf("  %s export --image=PATH --output=PATH [--quality=VALUE]\n", os.Args[0])
	fmt.Printf("  %s list [--db=PATH] [--backend=json|sqlite]\n", os.Args[0])
	fmt.Printf("  %s clear --yes [--db=PATH] [--backend=json|sqlite]\n", os.Args[0])
	fmt.Printf("  %s info [--db=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --image       : Path to the image to ingest or query\n")
	fmt.Printf("  --folder      : Path to a folder of images to scan\n")
	fmt.Printf("  --db          : Path to the fingerprint database (default: %s)\n", GetDefaultDatabasePath())
	fmt.Printf("  --backend     : Storage backend, json or sqlite (default: json)\n")
	fmt.Printf("  --threshold   : Similarity threshold for near-duplicates (0-100, default: 90)\n")
	fmt.Printf("  --workers     : Worker goroutines for scanning (default: auto)\n")
	fmt.Printf("  --output      : Destination path for export, format chosen by extension\n")
	fmt.Printf("  --quality     : JPEG quality for export (1-100, default: 95)\n")
	fmt.Printf("  --yes         : Confirm clearing the database\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: imagedupe.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s ingest --image=/path/to/photo.jpg --debug\n", os.Args[0])
	fmt.Printf("  %s scan --folder=/path/to/images --threshold=85\n", os.Args[0])
}

// ParseThreshold parses and validates the threshold value from string
func ParseThreshold(thresholdStr string) (float64, error) {
	parsedThreshold, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || parsedThreshold < 0 || parsedThreshold > 100 {
		return 90, fmt.Errorf("invalid threshold value '%s', using default (90)", thresholdStr)
	}
	return parsedThreshold, nil
}
