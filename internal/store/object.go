package store

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// parseObject imports the legacy line-oriented format: one
// `dotted.path>value` pair per line, blank lines and #-comments
// ignored. The dotted paths mirror the YAML nesting, so the importer
// rebuilds the tree and reuses the YAML codec.
func parseObject(data []byte) (*archive.Record, error) {
	tree := map[string]interface{}{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ">")
		if !ok {
			return nil, fmt.Errorf("line %d: no key>value separator", lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		if err := insert(tree, strings.Split(key, "."), value); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	encoded, err := yaml.Marshal(tree)
	if err != nil {
		return nil, err
	}
	rec := &archive.Record{}
	if err := yaml.Unmarshal(encoded, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func insert(tree map[string]interface{}, path []string, value string) error {
	if len(path) == 1 {
		tree[path[0]] = coerce(value)
		return nil
	}
	child, ok := tree[path[0]]
	if !ok {
		child = map[string]interface{}{}
		tree[path[0]] = child
	}
	childMap, ok := child.(map[string]interface{})
	if !ok {
		return fmt.Errorf("key %s is both leaf and branch", path[0])
	}
	return insert(childMap, path[1:], value)
}

// coerce keeps set counts and ports numeric through the YAML hop.
func coerce(value string) interface{} {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}
