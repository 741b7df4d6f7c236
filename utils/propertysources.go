package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// FriendlyFileName shortens paths under the working directory for log output
func FriendlyFileName(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}

	if rel, e := filepath.Rel(wd, path); e == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
