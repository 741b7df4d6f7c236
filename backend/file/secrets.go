package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/GlintPay/gkps/backend"
	"github.com/rs/zerolog/log"
)

// ReadSecretDir reads a mounted Secret volume: one entry per regular file, named by the file,
// with surrounding whitespace trimmed from the value. Dot-files such as `..data` are skipped,
// symlinks into them are followed.
func ReadSecretDir(dirPath string) (map[string]string, error) {
	dirEntry, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, &backend.IOError{Path: dirPath, Err: err}
	}

	entries := make(map[string]string, len(dirEntry))

	for _, d := range dirEntry {
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		filePath := filepath.Join(dirPath, name)

		info, statErr := os.Stat(filePath)
		if statErr != nil {
			log.Warn().Err(statErr).Msgf("Skipping unreadable secret %s", filePath)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		data, readErr := Read(filePath)
		if readErr != nil {
			return nil, readErr
		}

		entries[name] = strings.TrimSpace(string(data))
	}

	return entries, nil
}
