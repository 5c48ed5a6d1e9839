package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrNotExist         = errors.New("executable path does not exist")
	ErrNoExecutableName = errors.New(`invalid executable path, e.g. "./my-app/app.exe" or "/opt/my-app/app.sh"`)
)

// Target is a resolved executable: an absolute working directory and the
// file name inside it.
type Target struct {
	Dir  string
	Name string
}

// Resolve canonicalizes path into its parent directory and file name. It fails
// when the path does not exist, names a directory, or has no file extension
// unless allowNoExt is set.
func Resolve(path string, allowNoExt bool) (Target, error) {
	return resolve(path, !allowNoExt)
}

func resolve(path string, requireExt bool) (Target, error) {
	if path == "" {
		return Target{}, ErrPathRequired
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Target{}, fmt.Errorf("resolve %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Target{}, fmt.Errorf("%s: %w", abs, ErrNotExist)
		}
		return Target{}, fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Target{}, fmt.Errorf("stat %s: %w", resolved, err)
	}
	name := filepath.Base(resolved)
	if info.IsDir() || name == "." || name == string(filepath.Separator) {
		return Target{}, fmt.Errorf("%s: %w", resolved, ErrNoExecutableName)
	}
	if requireExt && filepath.Ext(name) == "" {
		return Target{}, fmt.Errorf("%s: %w", resolved, ErrNoExecutableName)
	}
	return Target{Dir: filepath.Dir(resolved), Name: name}, nil
}
