// Package scanner finds files that carry the PNG signature.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pyropy/paster/core/container"
)

// Find walks root and returns the path of every regular file whose first
// bytes are the PNG signature. File extensions are ignored. Unreadable
// files are skipped; an unreadable root is an error.
func Find(root string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		ok, err := isPNG(path)
		if err != nil || !ok {
			return nil
		}

		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

func isPNG(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	return container.HasSignature(f)
}
