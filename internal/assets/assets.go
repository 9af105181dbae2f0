// Package assets locates the bundled static web assets served by the sidecar.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrAssetsMissing indicates no candidate directory contained an index.html.
var ErrAssetsMissing = errors.New("web assets missing in app resources (expected index.html under web-dist)")

// candidates are the relative paths checked under the resource root,
// in order of preference.
var candidates = []string{
	"web-dist",
	filepath.Join("resources", "web-dist"),
}

// Resolve returns the first candidate directory under resourceRoot that
// contains an index.html. Returns ErrAssetsMissing if none qualifies.
func Resolve(resourceRoot string) (string, error) {
	for _, candidate := range candidates {
		dir := filepath.Join(resourceRoot, candidate)
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err == nil {
			return dir, nil
		}
	}

	return "", fmt.Errorf("%w (searched under %s)", ErrAssetsMissing, resourceRoot)
}
