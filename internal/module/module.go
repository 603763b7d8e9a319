// Package module locates function source files and their compiled outputs.
package module

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/oriys/lambdadev/internal/domain"
)

// Resolve returns the first existing regular file dir/name+ext, trying
// extensions in order. A miss is reported as ok == false with a nil error;
// err is only set for stat failures other than "does not exist".
func Resolve(dir, name string, exts []string) (path string, ok bool, err error) {
	if domain.ValidateFunctionName(name) != nil {
		return "", false, nil
	}
	for _, ext := range exts {
		candidate := filepath.Join(dir, name) + ext
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", false, fmt.Errorf("stat %s: %w", candidate, err)
		}
		if info.Mode().IsRegular() {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// OutputPath returns where the compiled artifact for name is written.
func OutputPath(outputDir, name string) string {
	return filepath.Join(outputDir, name) + domain.OutputExtension
}

// Lookup resolves name into a FunctionModule. It returns
// domain.ErrModuleNotFound when no source matches.
func Lookup(srcDir, outputDir, name string, exts []string) (*domain.FunctionModule, error) {
	src, ok, err := Resolve(srcDir, name, exts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrModuleNotFound
	}
	return &domain.FunctionModule{
		Name:       name,
		SourcePath: src,
		OutputPath: OutputPath(outputDir, name),
	}, nil
}

// Discover lists the regular files directly inside dir whose extension is
// one of exts, sorted by file name. Subdirectories are not searched.
func Discover(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !slices.Contains(exts, filepath.Ext(e.Name())) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Modules maps every discovered source in srcDir to its output in outputDir.
func Modules(srcDir, outputDir string, exts []string) ([]*domain.FunctionModule, error) {
	files, err := Discover(srcDir, exts)
	if err != nil {
		return nil, err
	}
	mods := make([]*domain.FunctionModule, 0, len(files))
	for _, f := range files {
		name := domain.NameFromSource(f)
		mods = append(mods, &domain.FunctionModule{
			Name:       name,
			SourcePath: f,
			OutputPath: OutputPath(outputDir, name),
		})
	}
	return mods, nil
}

// NameFromPath turns a request path relative to the functions prefix into a
// logical name ("/hello/" -> "hello").
func NameFromPath(p string) string {
	return strings.Trim(p, "/")
}
