package schedule

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_schedule.yaml
var defaultSchedule []byte

// Default returns the built-in weekly schedule.
func Default() (*Table, error) {
	return Parse(defaultSchedule)
}

// Load reads a schedule file. An empty path loads the built-in schedule.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule %s: %w", path, err)
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a YAML document mapping weekday names to ordered
// "HH:MM-HH:MM": activity pairs.
func Parse(b []byte) (*Table, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return NewTable(nil), nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: schedule must be a mapping of weekdays", doc.Line)
	}

	days := make(map[Weekday][]Entry, 7)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		day, err := parseWeekday(key.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if _, dup := days[day]; dup {
			return nil, fmt.Errorf("line %d: weekday %s listed twice", key.Line, day)
		}
		entries, err := parseDay(val)
		if err != nil {
			return nil, err
		}
		days[day] = entries
	}
	return NewTable(days), nil
}

func parseDay(n *yaml.Node) ([]Entry, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: day must map time ranges to activities", n.Line)
	}
	entries := make([]Entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		r, err := ParseRange(key.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, fmt.Errorf("line %d: activity for %s must be a non-empty string", val.Line, key.Value)
		}
		entries = append(entries, Entry{Range: r, Activity: val.Value})
	}
	return entries, nil
}
