package policy

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadRegoFiles reads all .rego files from the given directory, skipping
// *_test.rego files.
func LoadRegoFiles(dir string) (map[string]string, error) {
	modules := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".rego" || strings.HasSuffix(name, "_test.rego") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		modules[name] = string(data)
	}
	return modules, nil
}
