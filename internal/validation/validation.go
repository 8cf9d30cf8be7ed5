// Package validation holds input checks shared by the CLI commands.
package validation

import (
	"fmt"
	"os"
)

// IsValidPath checks that a path exists and is a regular file or
// directory.
func IsValidPath(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", path, err)
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return fmt.Errorf("path %s is neither a file nor a directory", path)
	}
	return nil
}

// IsValidReportFormat checks that the run-report format is supported.
func IsValidReportFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s. Supported formats are 'json', 'text'", format)
	}
}
