package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/homework-solver/constants"
)

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// Candidate reports whether path names a PDF the pipeline should look at.
func Candidate(path string) bool {
	return !IsHidden(path) && constants.IsSupportedFile(path)
}

// ScanDirectory lists the candidate PDFs directly inside dir, sorted by name.
// Subdirectories are not entered.
func ScanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if Candidate(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}
