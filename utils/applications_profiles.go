package utils

import (
	"strings"
)

// DefaultApplicationName names ConfigMaps and Secrets when no application name is configured
const DefaultApplicationName = "application"

func SplitProfileNames(csv string) []string {
	return splitNonEmpty(csv)
}

// SplitPaths splits a comma-separated path list, keeping its order
func SplitPaths(csv string) []string {
	return splitNonEmpty(csv)
}

func splitNonEmpty(csv string) []string {
	array := strings.Split(csv, ",")
	adjusted := make([]string, 0)
	for _, each := range array {
		trimmed := strings.TrimSpace(each)
		if trimmed != "" {
			adjusted = append(adjusted, trimmed)
		}
	}
	return adjusted
}
