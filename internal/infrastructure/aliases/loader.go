// Package aliases reads the product alias dictionary from a JSON or YAML
// file of canonical key to synonym (string or list) entries.
package aliases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/product-advisor/internal/core/expansion"
)

type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load returns an empty dictionary when the file does not exist. A file
// that exists but does not decode to a mapping is an error.
func (l *FileLoader) Load(context.Context) (*expansion.Dictionary, error) {
	if strings.TrimSpace(l.path) == "" {
		return expansion.NewDictionary(nil), nil
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expansion.NewDictionary(nil), nil
		}
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	entries, err := Decode(filepath.Ext(l.path), raw)
	if err != nil {
		return nil, err
	}
	return expansion.NewDictionary(entries), nil
}

// Decode parses raw as YAML for .yaml/.yml and as JSON otherwise.
func Decode(ext string, raw []byte) (map[string]any, error) {
	entries := map[string]any{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return entries, nil
	}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode alias yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode alias json: %w", err)
		}
	}
	return entries, nil
}
