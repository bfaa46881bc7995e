package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/mockrelay/internal/matching"
	"github.com/getmockd/mockrelay/pkg/mapping"
)

// MappingFilePattern selects mapping files below a mappings directory.
const MappingFilePattern = "**/*.{json,yaml,yml}"

// LoadError represents an error loading a specific file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadMappings reads every mapping file below dir. Mappings whose origin is
// not "recorded" are marked control-plane. Files that fail to parse or
// validate are reported in the returned errors and skipped.
func LoadMappings(dir string) ([]*mapping.Mapping, []error, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("mappings directory not found: %s", dir)
		}
		return nil, nil, fmt.Errorf("failed to access mappings directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("mappings path is not a directory: %s", dir)
	}

	files, err := doublestar.Glob(os.DirFS(dir), MappingFilePattern)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to glob mappings: %w", err)
	}
	sort.Strings(files)

	var out []*mapping.Mapping
	var loadErrs []error
	for _, rel := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		ms, err := loadMappingFile(path)
		if err != nil {
			loadErrs = append(loadErrs, &LoadError{Path: path, Err: err})
			continue
		}
		out = append(out, ms...)
	}
	return out, loadErrs, nil
}

func loadMappingFile(path string) ([]*mapping.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	ms, err := mapping.Unmarshal(data, mapping.FormatForPath(path))
	if err != nil {
		return nil, err
	}
	for i, m := range ms {
		if m.Origin == "" {
			m.Origin = mapping.OriginStatic
		}
		m.ControlPlane = m.Origin != mapping.OriginRecorded
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		if err := matching.Validate(&m.Request); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
	}
	return ms, nil
}
