// Package preview loads the head of text files for display.
package preview

import (
	"context"
	"strings"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
	"github.com/ayxkaddd/FilesBoard/pkg/models"
)

// RecentLines is how many leading lines are shown at full emphasis.
const RecentLines = 10

// Fetcher returns the raw preview lines of a file.
type Fetcher interface {
	Preview(ctx context.Context, name, folder string) ([]string, error)
}

// Result is a loaded preview. Available is false when the preview could
// not be fetched; the listing renders a placeholder instead.
type Result struct {
	Lines     []models.PreviewLine
	Available bool
}

// Loader fetches previews. Nothing is cached; every display refetches.
type Loader struct {
	fetcher Fetcher
}

// NewLoader creates a preview loader.
func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load fetches the preview of name in folder. Errors never propagate.
func (l *Loader) Load(ctx context.Context, name, folder string) Result {
	raw, err := l.fetcher.Preview(ctx, name, folder)
	if err != nil {
		metrics.RecordPreviewUnavailable()
		logging.Debug("preview unavailable",
			logging.String("name", name),
			logging.String("folder", folder),
			logging.Err(err),
		)
		return Result{}
	}
	return Result{Lines: Mark(raw), Available: true}
}

// Mark trims each line and flags the first RecentLines as recent. The
// remaining lines are kept but de-emphasized.
func Mark(raw []string) []models.PreviewLine {
	lines := make([]models.PreviewLine, len(raw))
	for i, text := range raw {
		lines[i] = models.PreviewLine{
			Text:   strings.TrimSpace(text),
			Recent: i < RecentLines,
		}
	}
	return lines
}
