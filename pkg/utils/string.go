package utils

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// ExpandHome replaces a leading "~" in path with home. When home is empty the
// current user's home directory is used.
func ExpandHome(path, home string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		home = h
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
