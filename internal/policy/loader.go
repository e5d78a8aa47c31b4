package policy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// record is one line of a JSONL policy file.
type record struct {
	Type        string   `json:"type"`
	Command     string   `json:"command"`
	AllowedArgs []string `json:"allowed_args"`
	Argv        []string `json:"argv"`
	Value       string   `json:"value"`
	Path        string   `json:"path"`
}

var policyKeys = []string{
	"no_arg_commands",
	"arg_subset_commands",
	"exact_commands",
	"ip_allowed_subcommands",
	"cat_allowed_files",
}

// Load reads a policy file. A missing file yields Default(). Files ending
// in .jsonl hold either one policy object or typed records (no_arg,
// arg_subset, exact, ip_subcommand, cat_file); any other file is decoded
// as a YAML or JSON object.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shell policy: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return loadJSONL(data)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse shell policy %s: %w", path, err)
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, fmt.Errorf("shell policy %s must be an object", path)
	}
	p := &Policy{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse shell policy %s: %w", path, err)
	}
	return p, nil
}

func loadJSONL(data []byte) (*Policy, error) {
	var lines [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			lines = append(lines, bytes.Clone(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read shell policy: %w", err)
	}

	// A single line holding a whole policy object.
	if len(lines) == 1 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(lines[0], &obj); err == nil && hasPolicyKey(obj) {
			p := &Policy{}
			if err := json.Unmarshal(lines[0], p); err != nil {
				return nil, fmt.Errorf("parse shell policy: %w", err)
			}
			return p, nil
		}
	}

	p := &Policy{ArgSubsetCommands: map[string][]string{}}
	for i, line := range lines {
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse shell policy line %d: %w", i+1, err)
		}
		switch rec.Type {
		case "no_arg":
			if rec.Command != "" {
				p.NoArgCommands = append(p.NoArgCommands, rec.Command)
			}
		case "arg_subset":
			if rec.Command != "" && rec.AllowedArgs != nil {
				p.ArgSubsetCommands[rec.Command] = rec.AllowedArgs
			}
		case "exact":
			if len(rec.Argv) > 0 {
				p.ExactCommands = append(p.ExactCommands, rec.Argv)
			}
		case "ip_subcommand":
			if rec.Value != "" {
				p.IPAllowedSubcommands = append(p.IPAllowedSubcommands, rec.Value)
			}
		case "cat_file":
			if rec.Path != "" {
				p.CatAllowedFiles = append(p.CatAllowedFiles, rec.Path)
			}
		}
	}
	return p, nil
}

func hasPolicyKey(obj map[string]json.RawMessage) bool {
	for _, k := range policyKeys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}
