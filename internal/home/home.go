package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the textpipe home directory.
	DefaultDirName = ".textpipe"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// IndexFileName is the default sqlite document index name.
	IndexFileName = "index.db"

	// ResourcesDirName holds gazetteers, taxonomies and stop lists.
	ResourcesDirName = "resources"
)

// Dir represents the textpipe home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.textpipe).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// IndexPath returns the path to the default document index.
func (d *Dir) IndexPath() string {
	return filepath.Join(d.path, IndexFileName)
}

// ResourcesPath returns the directory for stage resource files.
func (d *Dir) ResourcesPath() string {
	return filepath.Join(d.path, ResourcesDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating resources also creates the parent
	if err := os.MkdirAll(d.ResourcesPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create resources directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
