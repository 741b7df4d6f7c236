package sops

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/getsops/sops/v3/decrypt"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

const metadataKey = "sops"

// FormatForName maps a file or ConfigMap key name to the sops store format
func FormatForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// IsEncrypted checks if the first document of the content carries SOPS metadata
func IsEncrypted(data []byte, format string) bool {
	var content map[string]any

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &content); err != nil {
			return false
		}
	default:
		if err := yaml.Unmarshal(data, &content); err != nil {
			return false
		}
	}

	_, hasSops := content[metadataKey]
	return hasSops
}

// DecryptYAML returns the decrypted content, or the original content if it is not encrypted
func DecryptYAML(data []byte) ([]byte, error) {
	return Decrypt(data, FormatYAML)
}

func Decrypt(data []byte, format string) ([]byte, error) {
	if !IsEncrypted(data, format) {
		return data, nil
	}

	decrypted, err := decrypt.Data(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SOPS-encrypted %s content: %w", format, err)
	}

	return decrypted, nil
}
