package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/rules"
)

// tomlFile mirrors .mlint.toml. Pointers distinguish "unset" from zero.
type tomlFile struct {
	Version *int `toml:"version"`
	Project struct {
		Root string `toml:"root"`
		Name string `toml:"name"`
	} `toml:"project"`
	Index struct {
		MaxFileSize      interface{} `toml:"max_file_size"`
		MaxLines         *int        `toml:"max_lines"`
		Extensions       []string    `toml:"extensions"`
		FollowSymlinks   *bool       `toml:"follow_symlinks"`
		RespectGitignore *bool       `toml:"respect_gitignore"`
		WatchDebounceMs  *int        `toml:"watch_debounce_ms"`
	} `toml:"index"`
	Performance struct {
		Workers    *int `toml:"workers"`
		ParseLimit *int `toml:"parse_limit"`
		QueueSize  *int `toml:"queue_size"`
	} `toml:"performance"`
	Include []string   `toml:"include"`
	Exclude []string   `toml:"exclude"`
	Rules   []tomlRule `toml:"rule"`
}

type tomlRule struct {
	Key      string                 `toml:"key"`
	Template string                 `toml:"template"`
	Params   map[string]interface{} `toml:"params"`
}

// LoadTOML loads .mlint.toml from dir. A missing file yields (nil, nil).
func LoadTOML(dir string) (*Config, error) {
	path := filepath.Join(dir, tomlFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mlerrors.NewFileError("read", path, err)
	}

	cfg, err := parseTOML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Source = path
	resolveRoot(cfg, dir)
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	var file tomlFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default("")
	cfg.Project.Name = file.Project.Name
	cfg.Project.Root = file.Project.Root
	if file.Version != nil {
		cfg.Version = *file.Version
	}

	switch v := file.Index.MaxFileSize.(type) {
	case int64:
		cfg.Index.MaxFileSize = v
	case string:
		size, err := parseSize(v)
		if err != nil {
			return nil, mlerrors.NewConfigError("index.max_file_size", v, err)
		}
		cfg.Index.MaxFileSize = size
	}
	setInt(&cfg.Index.MaxLines, file.Index.MaxLines)
	setInt(&cfg.Index.WatchDebounceMs, file.Index.WatchDebounceMs)
	setBool(&cfg.Index.FollowSymlinks, file.Index.FollowSymlinks)
	setBool(&cfg.Index.RespectGitignore, file.Index.RespectGitignore)
	if len(file.Index.Extensions) > 0 {
		cfg.Index.Extensions = normalizeExtensions(file.Index.Extensions)
	}

	setInt(&cfg.Performance.Workers, file.Performance.Workers)
	setInt(&cfg.Performance.ParseLimit, file.Performance.ParseLimit)
	setInt(&cfg.Performance.QueueSize, file.Performance.QueueSize)

	cfg.Include = append(cfg.Include, file.Include...)
	if file.Exclude != nil {
		cfg.Exclude = file.Exclude
	}

	for i, r := range file.Rules {
		if r.Key == "" {
			return nil, mlerrors.NewConfigError("rule", strconv.Itoa(i), fmt.Errorf("rule needs a key"))
		}
		instance := rules.RuleInstance{Key: r.Key, TemplateKey: r.Template, Params: make(map[string]string, len(r.Params))}
		names := make([]string, 0, len(r.Params))
		for name := range r.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, ok := scalarString(r.Params[name])
			if !ok {
				return nil, mlerrors.NewConfigError("rule."+r.Key+"."+name, fmt.Sprint(r.Params[name]), fmt.Errorf("parameter must be a scalar"))
			}
			instance.Params[name] = v
		}
		cfg.Rules = append(cfg.Rules, instance)
	}
	return cfg, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
