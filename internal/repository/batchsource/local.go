package batchsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local reads batch files from disk: either every *.json file of a
// directory or an explicit file list. Acknowledging a batch removes its
// file unless the source keeps files.
type Local struct {
	dir   string
	files []string
	keep  bool
}

// NewDir serves every batch file found directly in dir.
func NewDir(dir string) *Local {
	return &Local{dir: dir}
}

// NewFiles serves exactly the given files.
func NewFiles(paths ...string) *Local {
	return &Local{files: append([]string(nil), paths...)}
}

// KeepFiles makes Ack leave files in place.
func (l *Local) KeepFiles() *Local {
	l.keep = true
	return l
}

// List returns batch file paths in lexical order.
func (l *Local) List(_ context.Context) ([]string, error) {
	if l.dir == "" {
		return append([]string(nil), l.files...), nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", l.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isBatchName(e.Name()) {
			continue
		}
		names = append(names, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// Fetch reads one batch file.
func (l *Local) Fetch(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Ack removes a consumed batch file. A missing file counts as acknowledged.
func (l *Local) Ack(_ context.Context, name string) error {
	if l.keep {
		return nil
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// String identifies the source in logs.
func (l *Local) String() string {
	if l.dir != "" {
		return "dir://" + l.dir
	}
	return "files://" + strings.Join(l.files, ",")
}
