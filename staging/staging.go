// Package staging manages the local directory where records are materialized
// before upload.
package staging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// Dir is a staging directory. Every record gets its own file, named by the
// caller, so concurrent invocations handling different records never share one.
type Dir struct {
	path string
}

func New(path string) *Dir {
	if strings.TrimSpace(path) == "" {
		panic("staging path is required")
	}
	return &Dir{path: filepath.Clean(path)}
}

func (d *Dir) Path() string { return d.path }

// FilePath returns the path of the staging file for name. Name must be a plain
// file name; anything that would escape the directory is rejected.
func (d *Dir) FilePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid staging file name %q", name)
	}
	return filepath.Join(d.path, name), nil
}

// Ensure creates the directory and any missing parents. It succeeds if the
// directory already exists, including when another process created it first.
// The returned bool reports whether this call created it.
func (d *Dir) Ensure() (created bool, err error) {
	if fi, err := os.Stat(d.path); err == nil {
		if !fi.IsDir() {
			return false, fmt.Errorf("staging path %s is not a directory", d.path)
		}
		return false, nil
	}
	if err := os.MkdirAll(d.path, dirPerm); err != nil {
		return false, fmt.Errorf("create staging dir %s: %w", d.path, err)
	}
	return true, nil
}

// Write replaces the contents of the file at path.
func (d *Dir) Write(path string, data []byte) error {
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}
	return nil
}

// Remove deletes the file at path. A file that is already gone is an error,
// since it means something else touched the staging area.
func (d *Dir) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}
