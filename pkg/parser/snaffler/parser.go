package snaffler

import (
	"strings"

	"github.com/caueb/chimas/pkg/logger"
	"github.com/caueb/chimas/pkg/parser"
	"github.com/caueb/chimas/pkg/types"
)

// Extractor turns scanner output, JSON event logs or flat text/log lines,
// into raw file and share findings. Records come back unmerged; the merge
// pass runs separately.
type Extractor struct {
	log *logger.Logger
}

// New creates a new scanner record extractor
func New() *Extractor {
	return &Extractor{log: logger.Default()}
}

// WithLogger sets a custom logger for the extractor
func (e *Extractor) WithLogger(log *logger.Logger) *Extractor {
	e.log = log
	return e
}

// ExtractText processes flat text/log input line by line. A line is
// admissible only if it carries a [File] or [Share] marker; admissible
// lines missing required tokens are skipped, never fatal.
func (e *Extractor) ExtractText(input string) ([]types.FileFinding, []types.ShareFinding) {
	var files []types.FileFinding
	var shares []types.ShareFinding

	for _, line := range strings.Split(input, "\n") {
		if !strings.Contains(line, parser.MarkerFile) && !strings.Contains(line, parser.MarkerShare) {
			continue
		}
		tok, err := tokenizeLine(line)
		if err != nil {
			e.log.Debug("skipping line: %v", err)
			continue
		}
		if tok.isShare {
			shares = append(shares, shareFromTokens(tok))
		} else {
			files = append(files, fileFromTokens(tok))
		}
	}

	return files, shares
}
