package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source locates the value of one config key.
type Source struct {
	Kind   SourceKind
	Name   string // for default
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // key path -> file position of the winning value
	Files   []string          // loaded files, includes first
}

func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "randrd", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "randrd", "config.yaml"), nil
}

// LoadWithSources loads the config at the default path.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields the
// defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	l := &loader{sources: map[string]Source{}}

	raw := RawConfig{}
	if _, err := os.Stat(path); err == nil {
		if raw, err = l.load(path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, l.locate(err)
	}
	return &LoadResult{Config: cfg, Sources: l.sources, Files: l.files}, nil
}

// loader merges a file over its includes. Included files are merged in
// order, then the including file on top.
type loader struct {
	stack   []string
	sources map[string]Source
	files   []string
}

func (l *loader) load(path string) (RawConfig, error) {
	canon, err := filepath.Abs(path)
	if err != nil {
		return RawConfig{}, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(canon); err == nil {
		canon = real
	}
	for _, open := range l.stack {
		if open == canon {
			return RawConfig{}, fmt.Errorf("include cycle detected: %s -> %s", strings.Join(l.stack, " -> "), canon)
		}
	}

	data, err := os.ReadFile(canon)
	if err != nil {
		return RawConfig{}, fmt.Errorf("%s: failed to read: %w", canon, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawConfig{}, fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
	}
	var raw RawConfig
	if err := decodeStrictYAML(data, &raw); err != nil {
		return RawConfig{}, fmt.Errorf("%s: %w", canon, err)
	}
	sources := map[string]Source{}
	collectSources(rootNode(&doc), canon, "", sources)

	l.stack = append(l.stack, canon)
	merged := RawConfig{}
	for _, include := range raw.Include {
		paths, err := expandInclude(canon, include)
		if err != nil {
			src := sources["include"]
			return RawConfig{}, fmt.Errorf("%s:%d:%d: include %q: %w", canon, src.Line, src.Column, include, err)
		}
		for _, p := range paths {
			inc, err := l.load(p)
			if err != nil {
				return RawConfig{}, err
			}
			merged = merged.merge(inc)
		}
	}
	l.stack = l.stack[:len(l.stack)-1]

	for key, src := range sources {
		l.sources[key] = src
	}
	l.files = append(l.files, canon)
	return merged.merge(raw), nil
}

// locate attaches the file position of the offending key to a
// validation error.
func (l *loader) locate(err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := l.sources[verr.Path]; ok {
		verr.Source = src
	}
	return err
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// expandInclude resolves an include relative to the including file. A
// directory includes its .yaml and .yml files in name order.
func expandInclude(baseFile, include string) ([]string, error) {
	if include == "" {
		return nil, fmt.Errorf("path is empty")
	}
	path := include
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(baseFile), include)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if !ent.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(path, ent.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func rootNode(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

// collectSources records the position of every key. Sequence items are
// indexed so validation errors on outputs.N point at the entry.
func collectSources(node *yaml.Node, file, prefix string, out map[string]Source) {
	at := func(n *yaml.Node) Source {
		return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
	}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			path := node.Content[i].Value
			if prefix != "" {
				path = prefix + "." + path
			}
			out[path] = at(node.Content[i+1])
			collectSources(node.Content[i+1], file, path, out)
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			path := fmt.Sprintf("%s.%d", prefix, i)
			out[path] = at(item)
			collectSources(item, file, path, out)
		}
	}
}
