package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileSource serves settings from a YAML document. Nested mappings are
// flattened into dotted keys, so both of these set the same property:
//
//	otel.exporter.cloud-logging.timeout: 5s
//
//	otel:
//	  exporter:
//	    cloud-logging:
//	      timeout: 5s
//
// Sequences are joined with commas to match the List setting format.
type FileSource struct {
	path   string
	values map[string]string
}

// NewFileSource reads and flattens the YAML file at path.
func NewFileSource(path string) (*FileSource, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// #nosec G304 -- File path is configured at startup
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
	}

	values, err := parseYAMLSource(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
	}

	return &FileSource{path: absPath, values: values}, nil
}

// Path returns the absolute path the source was loaded from.
func (f *FileSource) Path() string { return f.path }

// Lookup implements Source.
func (f *FileSource) Lookup(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.values[key]
	return v, ok
}

func parseYAMLSource(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	flatten("", doc, values)
	return values, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, scalarString(item))
			}
			out[full] = strings.Join(items, ",")
		default:
			out[full] = scalarString(v)
		}
	}
}

func scalarString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
