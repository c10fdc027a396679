package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func getXDGStateHome(appName string) (string, error) {
	xdgStateHome := os.Getenv("XDG_STATE_HOME")
	if xdgStateHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		xdgStateHome = filepath.Join(homeDir, ".local", "state")
	}

	appStateDir := filepath.Join(xdgStateHome, appName)

	if err := os.MkdirAll(appStateDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return appStateDir, nil
}

// isSubsequence reports whether all characters of query appear in target
// in order, ignoring case.
func isSubsequence(query, target string) bool {
	query = strings.ToLower(query)
	target = strings.ToLower(target)

	i := 0
	for j := 0; i < len(query) && j < len(target); j++ {
		if query[i] == target[j] {
			i++
		}
	}
	return i == len(query)
}
