package relay

import (
	"fmt"
	"os"
	"path/filepath"
)

// Saver stores a finished CSV and returns where it ended up.
//
// note: fault injection point
type Saver interface {
	Save(filename string, contents []byte) (string, error)
}

// DirSaver writes files into Dir, creating it when missing.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(filename string, contents []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	// only the base name is honored, filenames never escape Dir
	path := filepath.Join(dir, filepath.Base(filename))
	err = os.WriteFile(path, contents, 0644)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
