// Package scanner discovers mailbox export files on disk so the process
// command can take a directory as input.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"fjacquet/mail-ledger/internal/fileutils"
	"fjacquet/mail-ledger/internal/logging"
)

// ExportScanner finds mailbox export files under a set of paths.
type ExportScanner struct {
	logger logging.Logger
}

// NewExportScanner creates a scanner.
func NewExportScanner(logger logging.Logger) *ExportScanner {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &ExportScanner{logger: logger}
}

// ScanPaths resolves each path to mailbox export files. Files are
// returned as-is; directories are searched recursively for .json
// files. The result is sorted and deduplicated.
func (s *ExportScanner) ScanPaths(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var exports []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			exports = append(exports, path)
		}
	}

	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", p, err)
		}

		switch {
		case fileutils.DirectoryExists(absPath):
			found, err := s.scanDirectory(absPath)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
		case fileutils.FileExists(absPath):
			add(absPath)
		default:
			return nil, fmt.Errorf("path does not exist: %s", absPath)
		}
	}

	sort.Strings(exports)
	s.logger.Debug("scanned for mailbox exports",
		logging.Field{Key: logging.FieldCount, Value: len(exports)})
	return exports, nil
}

// scanDirectory walks a directory tree collecting .json files.
func (s *ExportScanner) scanDirectory(dirPath string) ([]string, error) {
	var exports []string

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.WithError(err).Warn("error walking path",
				logging.Field{Key: logging.FieldInputFile, Value: path})
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			exports = append(exports, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dirPath, err)
	}
	return exports, nil
}
