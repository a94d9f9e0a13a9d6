package reporter

import (
	"fmt"

	"github.com/lakewatch/lakewatch/internal/models"
	"github.com/lakewatch/lakewatch/pkg/config"
)

// Formats accepted by the --format flag.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatAll      = "all"
)

// Reporter interface for generating reports
type Reporter interface {
	Generate(report *models.Report) error
}

// reporter implements the Reporter interface
type reporter struct {
	config *config.Config
}

// New creates a new reporter instance
func New(cfg *config.Config) Reporter {
	return &reporter{
		config: cfg,
	}
}

// Generate writes the report in the configured format(s).
func (r *reporter) Generate(report *models.Report) error {
	switch r.config.Format {
	case FormatJSON:
		return WriteJSON(report, r.config)
	case FormatMarkdown:
		return WriteMarkdown(report, r.config)
	case FormatAll:
		if err := WriteJSON(report, r.config); err != nil {
			return err
		}
		return WriteMarkdown(report, r.config)
	default:
		return fmt.Errorf("invalid report format: %s", r.config.Format)
	}
}

// ValidFormat reports whether format is an accepted --format value.
func ValidFormat(format string) bool {
	switch format {
	case FormatJSON, FormatMarkdown, FormatAll:
		return true
	}
	return false
}
