// Package report renders the outcome of a pipeline run so it can be
// archived or fed to other tooling.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"fjacquet/mail-ledger/internal/fileutils"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/pipeline"
)

// Generator renders pipeline run reports in various formats.
type Generator struct {
	logger logging.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Generator{logger: logger}
}

// Generate renders a run report in the given format, "json" or "text".
func (g *Generator) Generate(report *pipeline.Report, format string) ([]byte, error) {
	switch format {
	case "json":
		return g.generateJSON(report)
	case "text":
		return g.generateText(report), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// WriteFile renders the report and writes it to a file.
func (g *Generator) WriteFile(report *pipeline.Report, format, path string) error {
	data, err := g.Generate(report, format)
	if err != nil {
		return err
	}
	if err := fileutils.WriteFile(path, data, 0600); err != nil {
		return err
	}
	g.logger.Info("run report written",
		logging.Field{Key: logging.FieldInputFile, Value: path})
	return nil
}

type jsonReport struct {
	Users map[string]pipeline.UserReport `json:"users"`
	Total pipeline.UserReport            `json:"total"`
}

func (g *Generator) generateJSON(report *pipeline.Report) ([]byte, error) {
	out := jsonReport{Users: make(map[string]pipeline.UserReport, len(report.Users))}
	for user, ur := range report.Users {
		out.Users[user] = *ur
	}
	out.Total = report.Total()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run report: %w", err)
	}
	return data, nil
}

func (g *Generator) generateText(report *pipeline.Report) []byte {
	users := make([]string, 0, len(report.Users))
	for user := range report.Users {
		users = append(users, user)
	}
	sort.Strings(users)

	var b strings.Builder
	for _, user := range users {
		ur := report.Users[user]
		fmt.Fprintf(&b, "%s: processed=%d accepted=%d review=%d duplicates=%d replayed=%d skipped=%d errors=%d\n",
			user, ur.Processed, ur.Accepted, ur.NeedsReview, ur.Duplicates, ur.Replayed, ur.Skipped, ur.Errors)
	}
	total := report.Total()
	fmt.Fprintf(&b, "total: processed=%d accepted=%d review=%d duplicates=%d replayed=%d skipped=%d errors=%d\n",
		total.Processed, total.Accepted, total.NeedsReview, total.Duplicates, total.Replayed, total.Skipped, total.Errors)

	reasons := make([]string, 0, len(total.SkipReasons))
	for reason := range total.SkipReasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(&b, "  skipped[%s]=%d\n", reason, total.SkipReasons[reason])
	}
	return []byte(b.String())
}
