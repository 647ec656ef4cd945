package parser

import (
	"path/filepath"
	"strings"
)

// Category is the caller-declared input category. The ingestion layer
// derives it from the file extension; content is never sniffed across
// categories, only sub-formats within one.
type Category string

const (
	CategoryJSON Category = "json"
	CategoryLog  Category = "log"
	CategoryText Category = "text"
)

// CategoryFromPath returns the category for a file path: .json files are
// json, .log files are log, anything else is text.
func CategoryFromPath(path string) Category {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return CategoryJSON
	case ".log":
		return CategoryLog
	default:
		return CategoryText
	}
}

// Marker substrings used by both external tools' outputs.
const (
	MarkerFile   = "[File]"
	MarkerShare  = "[Share]"
	MarkerGPO    = "[GPO]"
	MarkerInfo   = "[Info]"
	MarkerFinish = "[Finish]"
)

// FenceToken prefixes the lines that open a nested block in policy
// reports.
const FenceToken = `\___`
