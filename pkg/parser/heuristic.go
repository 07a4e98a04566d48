package parser

import (
	"regexp"
	"strings"
)

var (
	heuristicTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	heuristicLevel     = regexp.MustCompile(`(?i)\b(info|debug|trace|warn|error)\b`)
)

// ExtractTimestamp returns the first YYYY-MM-DDThh:mm:ss substring of line,
// or "" when there is none.
func ExtractTimestamp(line string) string {
	return heuristicTimestamp.FindString(line)
}

// ExtractLevel returns the first whole-word level keyword in line,
// or LevelUnknown.
func ExtractLevel(line string) Level {
	m := heuristicLevel.FindStringSubmatch(line)
	if len(m) < 2 {
		return LevelUnknown
	}
	return Level(strings.ToLower(m[1]))
}
