// Package taskfile reads task lists from JSON, YAML or TOML files.
package taskfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/PertForge/internal/domain/schedule"
)

// ErrUnsupportedFormat is returned for file extensions other than .json,
// .yaml, .yml and .toml.
var ErrUnsupportedFormat = errors.New("unsupported task file format")

// File is the content of a task file. A JSON or YAML file may also hold a
// bare list of tasks.
type File struct {
	Name         string `json:"name" yaml:"name" toml:"name"`
	ProjectStart *int   `json:"t0" yaml:"t0" toml:"t0"`
	Tasks        []Task `json:"tasks" yaml:"tasks" toml:"tasks"`
}

// Task is one task record. Predecessors may be written as a list or as a
// single string such as "B, C".
type Task struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	Duration     float64  `json:"duration" yaml:"duration" toml:"duration"`
	Optimistic   float64  `json:"optimistic" yaml:"optimistic" toml:"optimistic"`
	MostLikely   float64  `json:"most_likely" yaml:"most_likely" toml:"most_likely"`
	Pessimistic  float64  `json:"pessimistic" yaml:"pessimistic" toml:"pessimistic"`
	Predecessors NameList `json:"predecessors" yaml:"predecessors" toml:"predecessors"`
}

// RawTasks converts the file's tasks for scheduling.
func (f *File) RawTasks() []schedule.RawTask {
	out := make([]schedule.RawTask, len(f.Tasks))
	for i, t := range f.Tasks {
		out[i] = schedule.RawTask{
			Name:         t.Name,
			Duration:     t.Duration,
			Optimistic:   t.Optimistic,
			MostLikely:   t.MostLikely,
			Pessimistic:  t.Pessimistic,
			Predecessors: []string(t.Predecessors),
		}
	}
	return out
}

// Start returns the project start, defaulting to schedule.DefaultProjectStart.
func (f *File) Start() int {
	if f.ProjectStart == nil {
		return schedule.DefaultProjectStart
	}
	return *f.ProjectStart
}

// Load reads path, choosing the decoder by extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data in the format named by ext (".json", ".yaml", ".yml"
// or ".toml").
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch ext {
	case ".json":
		if isList(bytes.TrimSpace(data), '[') {
			if err := json.Unmarshal(data, &f.Tasks); err != nil {
				return nil, err
			}
			return &f, nil
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Content[0].Decode(&f.Tasks); err != nil {
				return nil, err
			}
			return &f, nil
		}
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return &f, nil
}

func isList(data []byte, open byte) bool {
	return len(data) > 0 && data[0] == open
}

// NameList is a list of task names that also accepts a single delimited
// string.
type NameList []string

func (n *NameList) set(s string) {
	if strings.TrimSpace(s) == "" {
		*n = nil
		return
	}
	*n = NameList{s}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NameList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.set(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("predecessors must be a string or a list of strings")
	}
	*n = list
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *NameList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		n.set(value.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	return fmt.Errorf("line %d: predecessors must be a string or a list of strings", value.Line)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (n *NameList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		n.set(val)
		return nil
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("predecessors must contain strings, got %T", item)
			}
			list = append(list, s)
		}
		*n = list
		return nil
	}
	return fmt.Errorf("predecessors must be a string or a list of strings, got %T", v)
}
