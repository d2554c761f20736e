// Package configutil reads json5 config files with optional uncommitted overrides.
package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalName returns the override file of a config file, app.json5 -> app.local.json5.
func LocalName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// readLayer decodes one file, found is false when it is missing or empty.
func readLayer[T any](path string) (out T, found bool, err error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads path and merges its LocalName override over it, fields that are
// set in the override win. It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](path string) (T, error) {
	out, foundBase, err := readLayer[T](path)
	if err != nil {
		return out, err
	}

	local := LocalName(path)
	override, foundLocal, err := readLayer[T](local)
	if err != nil {
		return out, err
	}
	if !foundBase && !foundLocal {
		return out, os.ErrNotExist
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		slog.Debug("merged config with local overrides", "local", local)
	}
	return out, nil
}

// ReadRecursively calls ReadConfig for name in the working directory and in every
// parent up to the filesystem root, the closest match wins.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		cfg, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			slog.Debug("found config", "path", filepath.Join(dir, name))
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return zero, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}

// WithDefaults fills every zero field of cfg with the corresponding field of defaults.
func WithDefaults[T any](cfg T, defaults T) (T, error) {
	err := mergo.Merge(&cfg, defaults)
	return cfg, err
}
