package conf

import (
	"os"
	"path/filepath"
)

// DefaultConfigPaths lists where config.yaml is searched, in order
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "genenft"))
	}
	return append(paths, "/etc/genenft")
}

// DefaultConfigFile is where `config init` writes when no path is given
func DefaultConfigFile() string {
	paths := DefaultConfigPaths()
	if len(paths) > 1 {
		return filepath.Join(paths[1], "config.yaml")
	}
	return "config.yaml"
}
