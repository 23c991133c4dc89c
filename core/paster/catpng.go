package paster

import (
	"fmt"
	"os"

	"github.com/pyropy/paster/core/container"
	"github.com/pyropy/paster/core/model"
)

// LoadFragments decodes local container files. The argument position of
// each file becomes its sequence number.
func LoadFragments(paths []string) ([]model.Fragment, error) {
	fragments := make([]model.Fragment, 0, len(paths))

	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		img, err := container.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}

		fragments = append(fragments, model.NewFragment(uint32(i), img))
	}

	return fragments, nil
}

// Concat stacks the files at paths top to bottom in argument order.
func Concat(paths []string) (*AssembledImage, error) {
	fragments, err := LoadFragments(paths)
	if err != nil {
		return nil, err
	}

	return Assemble(fragments)
}
